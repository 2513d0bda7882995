package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"voxrecipe/internal/preflight"
	"voxrecipe/internal/stage"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

const statusLabelWidth = 36

// statusPrinter writes check output, colorized only on terminals.
type statusPrinter struct {
	out      io.Writer
	colorize bool
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, colorize: shouldColorize(out)}
}

func (p *statusPrinter) section(title string) {
	line := fmt.Sprintf("== %s ==", title)
	if p.colorize {
		line = statusStyles[statusInfo].color + line + ansiReset
	}
	fmt.Fprintln(p.out, line)
}

func (p *statusPrinter) line(label string, kind statusKind, message string) {
	fmt.Fprintln(p.out, renderStatusLine(label, kind, message, p.colorize))
}

// result prints one preflight check. Failed non-blocking checks are warnings.
func (p *statusPrinter) result(r preflight.Result) {
	kind := statusOK
	switch {
	case !r.Passed && r.Warning:
		kind = statusWarn
	case !r.Passed:
		kind = statusError
	}
	p.line(r.Name, kind, r.Detail)
}

// readiness prints whether a stage's tools resolve. Stages outside the
// selected range are informational.
func (p *statusPrinter) readiness(s stage.Stage, h stage.Health, selected bool) {
	kind, detail := statusOK, "ready"
	if !h.Ready {
		kind, detail = statusError, h.Detail
	}
	if !selected {
		kind, detail = statusInfo, "not selected; "+detail
	}
	p.line(s.String(), kind, detail)
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	status := "[" + style.label + "]"
	if message != "" {
		status += " " + message
	}
	base := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status)
	if colorize {
		return style.color + base + ansiReset
	}
	return base
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
