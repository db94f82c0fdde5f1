// Command replay runs a recorded CSV trace through the feature detector and
// prints every state change.
//
//	seconds,feature,value
//	0.00,grip,0.12
//	0.05,grip,0.61
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sweeney/featurestate/internal/config"
	"github.com/sweeney/featurestate/internal/logic"
)

func main() {
	configPath := flag.String("config", config.String(config.EnvConfig, "features.yaml"), "Feature threshold config (YAML)")
	tracePath := flag.String("trace", "-", "CSV trace to replay (- for stdin)")
	summary := flag.Bool("summary", true, "Print final states")
	flag.Parse()

	if err := run(*configPath, *tracePath, *summary, os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath, tracePath string, summary bool, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tables, err := cfg.Tables()
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if tracePath != "-" {
		f, err := os.Open(tracePath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	steps, err := ParseTrace(in)
	if err != nil {
		return fmt.Errorf("parse trace: %w", err)
	}

	// trace times are offsets, only their differences matter
	start := time.Unix(0, 0).UTC()
	d, err := logic.NewDetector(tables, start)
	if err != nil {
		return err
	}

	RenderEvents(out, Replay(d, steps, start), start)
	if summary {
		RenderSummary(out, d.Snapshot())
	}
	return nil
}
