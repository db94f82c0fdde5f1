// Command featurestate resolves continuous feature samples into discrete
// states and publishes state changes to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/featurestate/internal/config"
	"github.com/sweeney/featurestate/internal/history"
	"github.com/sweeney/featurestate/internal/logic"
	"github.com/sweeney/featurestate/internal/mqtt"
	"github.com/sweeney/featurestate/internal/source"
	"github.com/sweeney/featurestate/internal/status"
	"github.com/sweeney/featurestate/internal/threshold"
	"github.com/sweeney/featurestate/internal/web"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("fatal: load .env: %v", err)
	}

	configPath := flag.String("config", config.String(config.EnvConfig, "features.yaml"), "Feature threshold config (YAML)")
	poll := flag.Duration("poll", config.Duration(config.EnvPoll, 50*time.Millisecond), "Source polling interval")
	broker := flag.String("broker", config.String(config.EnvBroker, "tcp://localhost:1883"), "MQTT broker address")
	baseTopic := flag.String("base-topic", config.String(config.EnvBaseTopic, mqtt.DefaultBaseTopic), "MQTT base topic")
	heartbeat := flag.Duration("heartbeat", config.Duration(config.EnvHeartbeat, 15*time.Minute), "Heartbeat interval (0 to disable)")
	httpAddr := flag.String("http", config.String(config.EnvHTTPAddr, ":8080"), "HTTP status address (empty to disable)")
	historyDB := flag.String("history", config.String(config.EnvHistoryDB, ""), "SQLite transition history path (empty to disable)")
	printState := flag.Bool("print-state", false, "Print the raw state of every feature and exit")

	flag.Parse()

	opts := mqtt.Options{
		Broker:    *broker,
		ClientID:  config.String(config.EnvMQTTClientID, "featurestate-"+uuid.NewString()[:8]),
		Username:  config.String(config.EnvMQTTUsername, ""),
		Password:  config.String(config.EnvMQTTPassword, ""),
		BaseTopic: *baseTopic,
	}
	if err := run(*configPath, *poll, *heartbeat, opts, *httpAddr, *historyDB, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, poll, heartbeat time.Duration, opts mqtt.Options, httpAddr, historyDB string, printState bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tables, err := cfg.Tables()
	if err != nil {
		return err
	}

	src, err := openSources(cfg, opts)
	if err != nil {
		return err
	}
	defer src.Close()

	if printState {
		// MQTT samples arrive asynchronously
		time.Sleep(poll)
		return printStates(os.Stdout, tables, src)
	}

	publisher, err := mqtt.NewRealPublisher(opts)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	var recorder Recorder
	var hist web.HistoryReader
	if historyDB != "" {
		store, err := history.NewStore(historyDB)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()
		recorder, hist = store, store
		log.Printf("history: run %s in %s", store.RunID(), historyDB)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      poll.Milliseconds(),
		HeartbeatMs: heartbeat.Milliseconds(),
		Broker:      opts.Broker,
		BaseTopic:   opts.BaseTopic,
		HTTPAddr:    httpAddr,
		ConfigPath:  configPath,
	})

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: statusPayload(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if httpAddr != "" {
		srv := web.New(httpAddr, tracker, hist)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", httpAddr)
	}

	log.Printf("started: features=%d poll=%v broker=%s heartbeat=%v", len(tables), poll, opts.Broker, heartbeat)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		tables:     tables,
		src:        src,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		recorder:   recorder,
		heartbeat:  heartbeat,
		now:        time.Now,
	}, ticker.C, sigCh)
}

// openSources builds one source per kind the config uses.
func openSources(cfg *config.File, opts mqtt.Options) (source.Source, error) {
	subs, lines, err := cfg.Sources()
	if err != nil {
		return nil, err
	}

	var multi source.Multi
	if len(subs) > 0 {
		srcOpts := opts
		srcOpts.ClientID = opts.ClientID + "-source"
		s, err := source.NewMQTTSource(srcOpts, subs)
		if err != nil {
			return nil, fmt.Errorf("init mqtt source: %w", err)
		}
		multi = append(multi, s)
	}
	if len(lines) > 0 {
		chip := cfg.GPIOChip
		if chip == "" {
			chip = source.DefaultChip
		}
		g, err := source.NewGPIOSource(chip, lines)
		if err != nil {
			multi.Close()
			return nil, fmt.Errorf("init gpio: %w", err)
		}
		multi = append(multi, g)
	}
	return multi, nil
}

// printStates reads one tick and prints each feature's raw classification.
func printStates(w io.Writer, tables []*threshold.Table, src source.Source) error {
	samples, err := src.Read()
	if err != nil {
		return fmt.Errorf("read sources: %w", err)
	}
	byFeature := make(map[string]float64, len(samples))
	for _, s := range samples {
		byFeature[s.Feature] = s.Value
	}
	for _, tbl := range tables {
		v, ok := byFeature[tbl.Feature()]
		if !ok {
			fmt.Fprintf(w, "%s: %s (no sample)\n", tbl.Feature(), status.StateOrUnknown(""))
			continue
		}
		state, err := logic.Classify(tbl, v, threshold.Uninitialized)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", tbl.Feature(), err)
			continue
		}
		fmt.Fprintf(w, "%s: %s (%g)\n", tbl.Feature(), state, v)
	}
	return nil
}

// statusPayload formats a lifecycle status snapshot. On failure it logs and
// returns nil so the event goes out with the plain system payload.
func statusPayload(snap status.Snapshot, event, reason string) []byte {
	data, err := status.FormatStatusEvent(snap, event, reason)
	if err != nil {
		log.Printf("status: %v", err)
		return nil
	}
	return data
}

// Recorder stores committed state changes.
type Recorder interface {
	Append(logic.Event) (history.Record, error)
}

type loopDeps struct {
	tables     []*threshold.Table
	src        source.Source
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // optional
	tracker    *status.Tracker       // optional
	recorder   Recorder              // optional
	heartbeat  time.Duration
	now        func() time.Time
}

func runLoop(d loopDeps, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := d.now()
	detector, err := logic.NewDetector(d.tables, startTime)
	if err != nil {
		return fmt.Errorf("init detector: %w", err)
	}

	refresh := func() {
		if d.tracker == nil {
			return
		}
		d.tracker.Update(detector.Snapshot(), detector.IsReady(), detector.Transitions())
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				refresh()
				event.RawPayload = statusPayload(d.tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := d.now()
			samples, err := d.src.Read()
			if err != nil {
				log.Printf("source read error: %v", err)
				if len(samples) == 0 {
					continue
				}
			}

			events := detector.Process(logic.Input{Samples: samples, Time: t})

			for _, event := range events {
				if event.Initial() {
					log.Printf("initial: %s=%s (sample=%g)", event.Feature, event.To, event.Sample)
				} else {
					log.Printf("event: %s %s -> %s (sample=%g)", event.Feature, event.From, event.To, event.Sample)
				}
				if err := d.publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
				}
				if d.recorder != nil {
					if _, err := d.recorder.Append(event); err != nil {
						log.Printf("history error: %v", err)
					}
				}
			}

			refresh()

			if hb := detector.CheckHeartbeat(t, d.heartbeat); hb != nil {
				log.Printf("heartbeat: uptime=%v transitions=%d", hb.Uptime, hb.Transitions)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					hbEvent.RawPayload = statusPayload(d.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}
