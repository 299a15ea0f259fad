package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// property binds an external name to a Config field.
type property struct {
	name  string
	field func(*Config) any
}

var properties = []property{
	{"CompileTheWorldStartAt", func(c *Config) any { return &c.StartAt }},
	{"CompileTheWorldStopAt", func(c *Config) any { return &c.StopAt }},
	{"CICompilerCount", func(c *Config) any { return &c.CompilerCount }},
	{"TieredCompilation", func(c *Config) any { return &c.Tiered }},
	{"TieredStopAtLevel", func(c *Config) any { return &c.TieredStopAtLevel }},
	{"BackgroundCompilation", func(c *Config) any { return &c.BackgroundCompilation }},
	{"CompileTheWorldPreloadClasses", func(c *Config) any { return &c.PreloadClasses }},
	{"DeoptimizeAllClassesRate", func(c *Config) any { return &c.DeoptimizeAllRate }},
	{"CompileTheWorldVerbose", func(c *Config) any { return &c.Verbose }},
	{"CompileTheWorldLogFile", func(c *Config) any { return &c.LogFile }},
	{"sun.boot.class.path", func(c *Config) any { return &c.BootClassPath }},
	{"java.home", func(c *Config) any { return &c.JavaHome }},
	{"ctw.backend", func(c *Config) any { return &c.Backend }},
	{"ctw.backend.url", func(c *Config) any { return &c.BackendURL }},
	{"ctw.backend.timeout", func(c *Config) any { return &c.BackendTimeout }},
	{"ctw.backpressure", func(c *Config) any { return &c.Backpressure }},
	{"ctw.sim.crashOn", func(c *Config) any { return &c.SimCrashOn }},
	{"ctw.sim.failOn", func(c *Config) any { return &c.SimFailOn }},
	{"ctw.sim.notCompilable", func(c *Config) any { return &c.SimNotCompilable }},
	{"ctw.sim.delay", func(c *Config) any { return &c.SimDelay }},
}

func lookup(name string) (property, bool) {
	for _, p := range properties {
		if p.name == name {
			return p, true
		}
	}
	return property{}, false
}

// Names lists every recognized property name.
func Names() []string {
	out := make([]string, len(properties))
	for i, p := range properties {
		out[i] = p.name
	}
	return out
}

// EnvName is the environment variable a property is read from: the
// property name with '.' replaced by '_'.
func EnvName(property string) string {
	return strings.ReplaceAll(property, ".", "_")
}

// Set assigns a property from its string form. Numbers and booleans are
// converted the way HCL converts strings; durations use time.ParseDuration.
func (c *Config) Set(name, value string) error {
	p, ok := lookup(name)
	if !ok {
		return fmt.Errorf("unknown property %q", name)
	}
	target := p.field(c)
	if d, ok := target.(*time.Duration); ok {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("property %s: %w", name, err)
		}
		*d = parsed
		return nil
	}
	if err := decodeString(value, target); err != nil {
		return fmt.Errorf("property %s: %w", name, err)
	}
	return nil
}

func decodeString(value string, target any) error {
	ty, err := gocty.ImpliedType(reflect.ValueOf(target).Elem().Interface())
	if err != nil {
		return err
	}
	converted, err := convert.Convert(cty.StringVal(value), ty)
	if err != nil {
		return fmt.Errorf("cannot convert %q to %s: %w", value, ty.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, target)
}

// ApplyProperties sets every property in props, in name order.
func (c *Config) ApplyProperties(props map[string]string) error {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.Set(name, props[name]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyEnv sets every property whose environment variable is present.
func (c *Config) ApplyEnv(lookupEnv func(string) (string, bool)) error {
	for _, p := range properties {
		v, ok := lookupEnv(EnvName(p.name))
		if !ok {
			continue
		}
		if err := c.Set(p.name, v); err != nil {
			return fmt.Errorf("environment %s: %w", EnvName(p.name), err)
		}
	}
	return nil
}

// ParseProperty splits a "-Dname=value" argument. A bare "-Dname" sets
// the value to "true".
func ParseProperty(arg string) (name, value string, ok bool) {
	rest, found := strings.CutPrefix(arg, "-D")
	if !found || rest == "" {
		return "", "", false
	}
	name, value, hasValue := strings.Cut(rest, "=")
	if name == "" {
		return "", "", false
	}
	if !hasValue {
		value = "true"
	}
	return name, value, true
}
