package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"

	"intersection/server/logging"
)

var severityColors = map[logging.Severity]string{
	logging.SeverityDebug: "\x1b[90m",
	logging.SeverityWarn:  "\x1b[33m",
	logging.SeverityError: "\x1b[31m",
}

const ansiReset = "\x1b[0m"

// ConsoleSink prints one human-readable line per event:
//
//	[type] tick=N actor=kind:id severity=level targets=... payload={...} key=value
type ConsoleSink struct {
	logger   *log.Logger
	colorize bool
}

// NewConsoleSink colours severities only when asked to and w is a terminal.
func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleSink{
		logger:   log.New(w, "", log.LstdFlags),
		colorize: cfg.UseColor && IsTerminal(w),
	}
}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (s *ConsoleSink) Write(event logging.Event) error {
	var line strings.Builder
	fmt.Fprintf(&line, "[%s] tick=%d actor=%s severity=%s", event.Type, event.Tick, entityLabel(event.Actor), s.severity(event.Severity))

	if len(event.Targets) > 0 {
		labels := make([]string, len(event.Targets))
		for i, target := range event.Targets {
			labels[i] = entityLabel(target)
		}
		line.WriteString(" targets=")
		line.WriteString(strings.Join(labels, ","))
	}
	if event.Payload != nil {
		line.WriteString(" payload=")
		if data, err := json.Marshal(event.Payload); err == nil {
			line.Write(data)
		} else {
			fmt.Fprintf(&line, "%v", event.Payload)
		}
	}
	if len(event.Extra) > 0 {
		keys := make([]string, 0, len(event.Extra))
		for key := range event.Extra {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&line, " %s=%v", key, event.Extra[key])
		}
	}

	s.logger.Print(line.String())
	return nil
}

func (s *ConsoleSink) severity(sev logging.Severity) string {
	label := sev.String()
	if color, ok := severityColors[sev]; ok && s.colorize {
		return color + label + ansiReset
	}
	return label
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func entityLabel(ref logging.EntityRef) string {
	switch {
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	default:
		return string(ref.Kind) + ":" + ref.ID
	}
}
