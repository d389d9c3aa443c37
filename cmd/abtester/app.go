package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-abtest/abtest/paramsync"
	"github.com/cwbudde/algo-abtest/abtest/router"
	"github.com/cwbudde/algo-abtest/abtest/session"
)

// errQuit ends the key loop.
var errQuit = errors.New("quit")

const helpText = `keys:
  a / b      listen to A / B
  space      toggle A/B
  j / k      next / previous parameter
  + / -      raise / lower the selected parameter
  0          reset the selected parameter to its default
  r          reset every parameter to its default
  c / C      copy A to B / B to A
  tab        link / unlink the processors
  x          crossfade on / off
  p          print parameters and meters
  h          this help
  q          quit
`

// app maps key presses to controller operations.
type app struct {
	ctl    *session.Controller
	out    io.Writer
	logger *slog.Logger
	step   float64
	cursor int
}

func newApp(ctl *session.Controller, out io.Writer, logger *slog.Logger) *app {
	return &app{ctl: ctl, out: out, logger: logger, step: 0.05}
}

// handleKey runs the command bound to key. It returns errQuit for q and
// Ctrl-C; other errors are reported and the loop continues.
func (a *app) handleKey(ctx context.Context, key byte) error {
	params := a.ctl.Synchronizer()

	switch key {
	case 'q', 3:
		return errQuit
	case 'a', 'A':
		return a.selectSlot(router.SlotA)
	case 'b', 'B':
		return a.selectSlot(router.SlotB)
	case ' ':
		slot, err := a.ctl.Toggle()
		if err != nil {
			return err
		}

		fmt.Fprintf(a.out, "listening to %s\n", slot)
	case 'j':
		a.moveCursor(1)
	case 'k':
		a.moveCursor(-1)
	case '+', '=':
		return a.nudge(ctx, a.step)
	case '-', '_':
		return a.nudge(ctx, -a.step)
	case '0':
		m, ok := a.current()
		if !ok {
			return nil
		}

		return a.set(ctx, m, m.Default)
	case 'r':
		if err := params.ResetDefaults(ctx); err != nil {
			return err
		}

		fmt.Fprintln(a.out, "parameters reset")
	case 'c':
		if err := params.CopyAToB(ctx); err != nil {
			return err
		}

		fmt.Fprintln(a.out, "copied A to B")
	case 'C':
		if err := params.CopyBToA(ctx); err != nil {
			return err
		}

		fmt.Fprintln(a.out, "copied B to A")
	case '\t':
		params.SetLinked(!params.Linked())
		fmt.Fprintf(a.out, "linked: %t\n", params.Linked())
	case 'x':
		r := a.ctl.Router()
		r.SetCrossfade(!r.Crossfade())
		fmt.Fprintf(a.out, "crossfade: %t\n", r.Crossfade())
	case 'p':
		a.printStatus()
	case 'h', '?':
		fmt.Fprint(a.out, helpText)
	}

	return nil
}

func (a *app) selectSlot(slot router.Slot) error {
	if err := a.ctl.Select(slot); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "listening to %s\n", slot)

	return nil
}

func (a *app) current() (paramsync.MergedParameter, bool) {
	merged := a.ctl.Synchronizer().MergedParameters()
	if len(merged) == 0 {
		return paramsync.MergedParameter{}, false
	}

	a.cursor = min(max(a.cursor, 0), len(merged)-1)

	return merged[a.cursor], true
}

func (a *app) moveCursor(delta int) {
	n := len(a.ctl.Synchronizer().MergedParameters())
	if n == 0 {
		return
	}

	a.cursor = ((a.cursor+delta)%n + n) % n

	if m, ok := a.current(); ok {
		fmt.Fprintf(a.out, "> %s %.3f\n", m.ID, m.Value)
	}
}

func (a *app) nudge(ctx context.Context, delta float64) error {
	m, ok := a.current()
	if !ok {
		return nil
	}

	return a.set(ctx, m, min(max(m.Value+delta, 0), 1))
}

func (a *app) set(ctx context.Context, m paramsync.MergedParameter, v float64) error {
	if err := a.ctl.Synchronizer().Set(ctx, m.ID, v, paramsync.OriginOperator, true); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s = %.3f\n", m.ID, a.ctl.Synchronizer().Get(m.ID))

	return nil
}

// printStatus writes the slot table, the parameter surface and the
// router counters.
func (a *app) printStatus() {
	r := a.ctl.Router()
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "SLOT\tNAME\tKIND\tPREPARED\n")
	for _, slot := range []router.Slot{router.SlotA, router.SlotB} {
		mark := " "
		if r.Selection() == slot {
			mark = "*"
		}

		p := a.ctl.Processor(slot)
		if p == nil {
			fmt.Fprintf(tw, "%s%s\t-\t-\t-\n", mark, slot)
			continue
		}

		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%t\n", mark, slot, p.Name(), p.Kind(), p.Prepared())
	}

	fmt.Fprintf(tw, "\nPARAM\tVALUE\tDEFAULT\tIN\n")
	for i, m := range a.ctl.Synchronizer().MergedParameters() {
		mark := " "
		if i == a.cursor {
			mark = ">"
		}

		fmt.Fprintf(tw, "%s%s\t%.3f\t%.3f\t%s\n", mark, m.ID, m.Value, m.Default, presence(m))
	}

	in, out := r.Meters()
	st := r.Stats()
	fmt.Fprintf(tw, "\nMETER\tPEAK dBFS\tRMS dBFS\n")
	fmt.Fprintf(tw, " in\t%.1f\t%.1f\n", in.PeakDB(), in.RMSDB())
	fmt.Fprintf(tw, " out\t%.1f\t%.1f\n", out.PeakDB(), out.RMSDB())
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "blocks %d\tpass-through %d\tfaults %d\tswitches %d\n", st.Blocks, st.PassThrough, st.Faults, st.Switches)
	fmt.Fprintf(tw, "linked %t\tcrossfade %t\tsuppressed %d\tphase %s\n",
		a.ctl.Synchronizer().Linked(), r.Crossfade(), a.ctl.Synchronizer().Suppressed(), a.ctl.Phase())

	if err := tw.Flush(); err != nil {
		a.logger.Warn("status output failed", "err", err)
	}
}

func presence(m paramsync.MergedParameter) string {
	switch {
	case m.Shared():
		return "A+B"
	case m.InA:
		return "A"
	default:
		return "B"
	}
}

// keyLoop feeds keys to handleKey until ctx is done, q is pressed or keys
// is closed.
func (a *app) keyLoop(ctx context.Context, keys <-chan byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case key, ok := <-keys:
			if !ok {
				return nil
			}

			err := a.handleKey(ctx, key)
			if errors.Is(err, errQuit) {
				return errQuit
			}

			if err != nil {
				a.logger.Warn("command failed", "key", fmt.Sprintf("%q", key), "err", err)
			}
		}
	}
}

// crlf turns "\n" into "\r\n" for terminals in raw mode.
type crlf struct {
	w io.Writer
}

func (c crlf) Write(p []byte) (int, error) {
	if _, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n")); err != nil {
		return 0, err
	}

	return len(p), nil
}
