// Command probe is an interactive console for trying threshold tables.
// Samples are typed in and the clock only moves on "tick", so dwell
// behaviour can be stepped through by hand.
package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/sweeney/featurestate/internal/config"
	"github.com/sweeney/featurestate/internal/threshold"
)

func main() {
	configPath := flag.String("config", config.String(config.EnvConfig, "features.yaml"), "Feature threshold config (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: load config: %v", err)
	}
	tables, err := cfg.Tables()
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	if err := run(tables); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(tables []*threshold.Table) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "> ",
		HistoryFile:  historyFilePath(),
		AutoComplete: completer(tables),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	console, err := NewConsole(rl.Stdout(), tables, time.Now())
	if err != nil {
		return err
	}
	log.SetOutput(rl.Stderr())
	log.Printf("probe: %d features loaded (type 'help' for commands)", len(tables))

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			return nil // EOF
		}
		err = console.Handle(strings.TrimSpace(line))
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			log.Printf("Error: %v", err)
		}
	}
}

func completer(tables []*threshold.Table) *readline.PrefixCompleter {
	features := make([]readline.PrefixCompleterInterface, len(tables))
	for i, tbl := range tables {
		features[i] = readline.PcItem(tbl.Feature())
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("set", features...),
		readline.PcItem("classify", features...),
		readline.PcItem("bands", features...),
		readline.PcItem("tick"),
		readline.PcItem("state"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// historyFilePath returns the probe history file, or "" when there is no
// usable cache directory.
func historyFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "featurestate")
	_ = os.MkdirAll(dir, 0750)
	return filepath.Join(dir, "probe_history")
}
