package runner

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-isatty"
)

const bannerTimeFormat = "2006-01-02 15:04:05"

// banner prints phase start/end lines, coloured when w is a terminal.
type banner struct {
	w       io.Writer
	colored bool
}

func newBanner(w io.Writer) *banner {
	colored := false
	if f, ok := w.(*os.File); ok {
		colored = isatty.IsTerminal(f.Fd())
	}
	return &banner{w: w, colored: colored}
}

func (b *banner) paint(style color.Style, text string) string {
	if !b.colored {
		return text
	}
	return style.Sprint(text)
}

func (b *banner) phaseStarted(p Phase, at time.Time) {
	head := fmt.Sprintf("========== Phase %d started at %s (start at #%d) ==========", p.Number, at.Format(bannerTimeFormat), p.Start)
	fmt.Fprintln(b.w, b.paint(color.New(color.FgCyan, color.OpBold), head))
	fmt.Fprintf(b.w, "Output of phase %d is redirected to %s\n", p.Number, p.LogFile)
}

func (b *banner) phaseFinished(p Phase, at time.Time, exitCode int, signal string) {
	status := fmt.Sprintf("exit code %d", exitCode)
	if signal != "" {
		status = "killed by " + signal
	}
	line := fmt.Sprintf("========== Phase %d finished at %s (%s) ==========", p.Number, at.Format(bannerTimeFormat), status)
	style := color.New(color.FgGreen, color.OpBold)
	if exitCode != 0 {
		style = color.New(color.FgRed, color.OpBold)
	}
	fmt.Fprintln(b.w, b.paint(style, line))
}

func (b *banner) failure(f string) {
	fmt.Fprintln(b.w, b.paint(color.New(color.FgYellow), "CTW failure: "+f))
}
