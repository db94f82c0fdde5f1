package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/featurestate/internal/logic"
	"github.com/sweeney/featurestate/internal/status"
	"github.com/sweeney/featurestate/internal/threshold"
)

var errQuit = errors.New("quit")

// Console drives a Detector from typed commands against a virtual clock.
// Samples are held between ticks the way the MQTT source holds them.
type Console struct {
	out      io.Writer
	tables   map[string]*threshold.Table
	detector *logic.Detector
	origin   time.Time
	now      time.Time
	held     map[string]float64
}

// NewConsole creates a console whose clock starts at start.
func NewConsole(out io.Writer, tables []*threshold.Table, start time.Time) (*Console, error) {
	d, err := logic.NewDetector(tables, start)
	if err != nil {
		return nil, err
	}
	c := &Console{
		out:      out,
		tables:   make(map[string]*threshold.Table, len(tables)),
		detector: d,
		origin:   start,
		now:      start,
		held:     make(map[string]float64),
	}
	for _, tbl := range tables {
		c.tables[tbl.Feature()] = tbl
	}
	return c, nil
}

// Handle runs one command line. It returns errQuit for quit/exit.
func (c *Console) Handle(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "set":
		if len(parts) != 3 {
			return errors.New("usage: set <feature> <value>")
		}
		if _, ok := c.tables[parts[1]]; !ok {
			return fmt.Errorf("unknown feature %q", parts[1])
		}
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return fmt.Errorf("bad value %q", parts[2])
		}
		c.held[parts[1]] = v
		c.step()

	case "tick":
		d := time.Duration(0)
		if len(parts) > 1 {
			var err error
			d, err = time.ParseDuration(parts[1])
			if err != nil || d < 0 {
				return fmt.Errorf("bad duration %q", parts[1])
			}
		}
		c.now = c.now.Add(d)
		c.step()

	case "classify":
		if len(parts) != 3 {
			return errors.New("usage: classify <feature> <value>")
		}
		tbl, ok := c.tables[parts[1]]
		if !ok {
			return fmt.Errorf("unknown feature %q", parts[1])
		}
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return fmt.Errorf("bad value %q", parts[2])
		}
		prev, _ := c.detector.CurrentState(parts[1])
		raw, err := logic.Classify(tbl, v, prev)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s %g -> %s\n", parts[1], v, raw)

	case "bands":
		for _, f := range c.detector.Features() {
			if len(parts) > 1 && parts[1] != f {
				continue
			}
			tbl := c.tables[f]
			fmt.Fprintln(c.out, tbl)
			names := make([]string, 0, tbl.Len()+1)
			for _, s := range tbl.States() {
				names = append(names, string(s))
			}
			fmt.Fprintf(c.out, "  states: %s\n", strings.Join(names, " < "))
			for _, th := range tbl.Thresholds() {
				fmt.Fprintf(c.out, "  %s | [%g, %g] | %s\n", th.LowState, th.LowEdge(), th.HighEdge(), th.HighState)
			}
		}

	case "state":
		c.printState()

	case "help":
		fmt.Fprintln(c.out, "Commands:")
		fmt.Fprintln(c.out, "  set <feature> <value>       - Hold a sample and run one tick")
		fmt.Fprintln(c.out, "  tick [duration]             - Advance the clock and re-feed held samples")
		fmt.Fprintln(c.out, "  classify <feature> <value>  - Show the raw state without committing")
		fmt.Fprintln(c.out, "  bands [feature]             - Show threshold bands")
		fmt.Fprintln(c.out, "  state                       - Show every feature")
		fmt.Fprintln(c.out, "  quit                        - Exit")

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command: %s (try 'help')", parts[0])
	}
	return nil
}

// step feeds the held samples at the current clock and prints any changes.
func (c *Console) step() {
	var samples []logic.Sample
	for _, f := range c.detector.Features() {
		if v, ok := c.held[f]; ok {
			samples = append(samples, logic.Sample{Feature: f, Value: v})
		}
	}
	for _, e := range c.detector.Process(logic.Input{Samples: samples, Time: c.now}) {
		from := status.StateOrUnknown(string(e.From))
		fmt.Fprintf(c.out, "+%v %s: %s -> %s\n", c.elapsed(), e.Feature, from, e.To)
	}
}

func (c *Console) printState() {
	fmt.Fprintf(c.out, "t=+%v ready=%v transitions=%d\n", c.elapsed(), c.detector.IsReady(), c.detector.Transitions())
	for _, f := range c.detector.Snapshot() {
		line := fmt.Sprintf("  %s: %s", f.Feature, status.StateOrUnknown(string(f.State)))
		if f.Sampled {
			line += fmt.Sprintf(" (sample %g)", f.Sample)
		}
		if f.Pending != threshold.Uninitialized {
			line += fmt.Sprintf(" pending %s for %v", f.Pending, c.now.Sub(f.PendingSince))
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *Console) elapsed() time.Duration {
	return c.now.Sub(c.origin)
}
