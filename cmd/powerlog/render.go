// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/assertion"
)

// recordPrinter writes activity records as aligned text. Colors are
// applied only when the output is a terminal; the renderer detects
// that from the writer.
type recordPrinter struct {
	w io.Writer

	timestamp lipgloss.Style
	creation  lipgloss.Style
	release   lipgloss.Style
	other     lipgloss.Style
	kind      lipgloss.Style
	banner    lipgloss.Style
}

func newRecordPrinter(w io.Writer) *recordPrinter {
	renderer := lipgloss.NewRenderer(w)
	action := renderer.NewStyle().Width(11)
	return &recordPrinter{
		w:         w,
		timestamp: renderer.NewStyle().Faint(true),
		creation:  action.Foreground(lipgloss.Color("2")),
		release:   action.Foreground(lipgloss.Color("3")),
		other:     action.Foreground(lipgloss.Color("8")),
		kind:      renderer.NewStyle().Width(32),
		banner:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

// overflow announces that records were lost before the batch that
// follows.
func (p *recordPrinter) overflow(cursor uint64) {
	fmt.Fprintln(p.w, p.banner.Render(fmt.Sprintf("--- records lost or log reset; resynced at cursor %d ---", cursor)))
}

func (p *recordPrinter) record(record activitylog.Record) {
	actionStyle := p.other
	switch {
	case record.Action.IsCreation():
		actionStyle = p.creation
	case record.Action.IsRelease():
		actionStyle = p.release
	}

	var line strings.Builder
	line.WriteString(p.timestamp.Render(record.Time.Format(time.RFC3339)))
	line.WriteString("  ")
	line.WriteString(actionStyle.Render(record.Action.String()))
	line.WriteString(" ")
	line.WriteString(p.kind.Render(record.Type.String()))
	fmt.Fprintf(&line, " pid=%-7d retain=%-3d id=%#x", record.PID, record.RetainCount, record.GlobalUniqueID)
	if record.Name != "" {
		fmt.Fprintf(&line, " %q", record.Name)
	}
	if record.OnBehalfOfPID != 0 {
		fmt.Fprintf(&line, " on-behalf-of=%d", record.OnBehalfOfPID)
		if record.OnBehalfOfReason != "" {
			fmt.Fprintf(&line, " (%s)", record.OnBehalfOfReason)
		}
	}
	fmt.Fprintln(p.w, line.String())

	if record.Action.CarriesBacktrace() {
		for _, frame := range record.CreatorBacktrace {
			fmt.Fprintf(p.w, "    %s\n", frame)
		}
	}
}

// effectColumns is the aggregate table header, one column per effect
// that carries time.
func effectColumns() []assertion.Effect {
	effects := make([]assertion.Effect, 0, assertion.NumEffects-1)
	for effect := range assertion.NumEffects {
		if effect != assertion.NoEffect {
			effects = append(effects, effect)
		}
	}
	return effects
}
