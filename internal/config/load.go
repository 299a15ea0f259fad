package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/ctwgo/internal/ctxlog"
)

// fileRoot is the schema of a driver config file. Every attribute is
// optional; absent ones leave the current value alone.
//
//	compile_range {
//	  start_at = 1
//	  stop_at  = 5000
//	}
//	compiler_count = 2
//	tiered         = true
//	backend "remote" {
//	  url = "http://localhost:7070"
//	}
//	properties = {
//	  "ctw.backpressure" = "block"
//	}
type fileRoot struct {
	CompileRange          *compileRange     `hcl:"compile_range,block"`
	CompilerCount         *int              `hcl:"compiler_count,optional"`
	Tiered                *bool             `hcl:"tiered,optional"`
	TieredStopAtLevel     *int              `hcl:"tiered_stop_at_level,optional"`
	BackgroundCompilation *bool             `hcl:"background_compilation,optional"`
	PreloadClasses        *bool             `hcl:"preload_classes,optional"`
	DeoptimizeAllRate     *int64            `hcl:"deoptimize_all_rate,optional"`
	Verbose               *bool             `hcl:"verbose,optional"`
	LogFile               *string           `hcl:"log_file,optional"`
	BootClassPath         *string           `hcl:"boot_class_path,optional"`
	JavaHome              *string           `hcl:"java_home,optional"`
	Backpressure          *string           `hcl:"backpressure,optional"`
	Backend               *backendBlock     `hcl:"backend,block"`
	Properties            map[string]string `hcl:"properties,optional"`
	Remain                hcl.Body          `hcl:",remain"`
}

type compileRange struct {
	StartAt *int64 `hcl:"start_at,optional"`
	StopAt  *int64 `hcl:"stop_at,optional"`
}

type backendBlock struct {
	Kind          string  `hcl:"kind,label"`
	URL           *string `hcl:"url,optional"`
	Timeout       *string `hcl:"timeout,optional"`
	CrashOn       *string `hcl:"crash_on,optional"`
	FailOn        *string `hcl:"fail_on,optional"`
	NotCompilable *string `hcl:"not_compilable,optional"`
	Delay         *string `hcl:"delay,optional"`
}

// LoadFile reads an HCL config file into cfg.
func LoadFile(ctx context.Context, path string, cfg *Config) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading config file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}
	if attrs, _ := root.Remain.JustAttributes(); len(attrs) > 0 {
		for name := range attrs {
			logger.Warn("Ignoring unknown config attribute.", "path", path, "attribute", name)
		}
	}

	if r := root.CompileRange; r != nil {
		setIf(&cfg.StartAt, r.StartAt)
		setIf(&cfg.StopAt, r.StopAt)
	}
	setIf(&cfg.CompilerCount, root.CompilerCount)
	setIf(&cfg.Tiered, root.Tiered)
	setIf(&cfg.TieredStopAtLevel, root.TieredStopAtLevel)
	setIf(&cfg.BackgroundCompilation, root.BackgroundCompilation)
	setIf(&cfg.PreloadClasses, root.PreloadClasses)
	setIf(&cfg.DeoptimizeAllRate, root.DeoptimizeAllRate)
	setIf(&cfg.Verbose, root.Verbose)
	setIf(&cfg.LogFile, root.LogFile)
	setIf(&cfg.BootClassPath, root.BootClassPath)
	setIf(&cfg.JavaHome, root.JavaHome)
	setIf(&cfg.Backpressure, root.Backpressure)

	if b := root.Backend; b != nil {
		cfg.Backend = b.Kind
		setIf(&cfg.BackendURL, b.URL)
		setIf(&cfg.SimCrashOn, b.CrashOn)
		setIf(&cfg.SimFailOn, b.FailOn)
		setIf(&cfg.SimNotCompilable, b.NotCompilable)
		if err := setDuration(&cfg.BackendTimeout, b.Timeout); err != nil {
			return fmt.Errorf("config file %s: backend timeout: %w", path, err)
		}
		if err := setDuration(&cfg.SimDelay, b.Delay); err != nil {
			return fmt.Errorf("config file %s: backend delay: %w", path, err)
		}
	}

	if err := cfg.ApplyProperties(root.Properties); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	logger.Debug("Config file applied.", "path", path)
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
