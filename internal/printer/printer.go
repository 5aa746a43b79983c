// Package printer renders bridge state for the terminal monitor.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	repository "github.com/okian/ssr3bridge/internal/adapters/repository"
	"github.com/okian/ssr3bridge/internal/domain/derive"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes state tables to w.
type Printer struct {
	w io.Writer
	// Only list keys carrying one of these prefixes. Empty means all.
	prefixes []string
}

// New creates a printer writing to w. A nil w selects stdout.
func New(w io.Writer, prefixes ...string) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, prefixes: prefixes}
}

// DisableColor turns colour escapes off for every printer.
func DisableColor() { color.NoColor = true }

// Header prints the connection line.
func (p *Printer) Header(snap *repository.Snapshot) {
	status := red.Sprint("disconnected")
	if snap.Connected {
		status = green.Sprint("connected")
	}
	target := faint.Sprint("no target")
	if snap.Active {
		target = cyan.Sprintf("target %s", orDash(snap.Subsystem))
	}
	fmt.Fprintf(p.w, "rev %d  %s  %s  producer %s\n", snap.Revision, status, target, orDash(snap.ProducerVersion))
	if snap.LastError != "" {
		red.Fprintf(p.w, "error: %s\n", snap.LastError)
	}
}

// Values prints one row per key. Keys changed by the latest ingestion are
// highlighted.
func (p *Printer) Values(snap *repository.Snapshot) {
	shown := 0
	for _, v := range snap.Values() {
		if !p.match(v.Key) {
			continue
		}
		shown++
		n, _ := v.Number()
		row := fmt.Sprintf("%-16s %-10s %12d  @%s", v.Key, v.Value, n, orDash(v.Address))
		if snap.Changed(v.Key) {
			yellow.Fprintf(p.w, "* %s\n", row)
			continue
		}
		fmt.Fprintf(p.w, "  %s\n", row)
	}
	if shown == 0 {
		faint.Fprintln(p.w, "  (no values)")
	}
}

// Derived prints the derivation summary.
func (p *Printer) Derived(v derive.View) {
	level := fmt.Sprintf("Lv.%d", v.Level())
	if v.Range.Over {
		level += " (over)"
	}
	phase := v.Phase
	switch phase {
	case "LOCKED":
		phase = green.Sprint(phase)
	case "CAPTURED":
		phase = yellow.Sprint(phase)
	}
	fmt.Fprintf(p.w, "latch %s  level %s  hand %s\n", phase, cyan.Sprint(level), orDash(string(v.Hand.Hand)))
	if v.Rezon.Name != nil {
		fmt.Fprintf(p.w, "rezon %s  access +%d  finalize %d turns\n", *v.Rezon.Name, v.Rezon.AccessLv, v.Rezon.FinalizeTurn)
	}
}

// Frame prints a full screen: header, values then derived view.
func (p *Printer) Frame(snap *repository.Snapshot, v derive.View) {
	p.Header(snap)
	p.Values(snap)
	p.Derived(v)
	fmt.Fprintln(p.w, faint.Sprint(strings.Repeat("-", 48)))
}

// Error prints a formatted error with suggestions to stderr and returns a
// plain error for cobra.
func Error(title, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	fmt.Fprintf(os.Stderr, "%s\n", explanation)
	for _, s := range suggestions {
		fmt.Fprintf(os.Stderr, "  - %s\n", s)
	}
	return fmt.Errorf("%s", title)
}

func (p *Printer) match(key string) bool {
	if len(p.prefixes) == 0 {
		return true
	}
	for _, pre := range p.prefixes {
		if strings.HasPrefix(key, pre) {
			return true
		}
	}
	return false
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
