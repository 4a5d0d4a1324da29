package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dbbuilder/termkeep/internal/config"
	"github.com/dbbuilder/termkeep/internal/history"
	"github.com/dbbuilder/termkeep/internal/logging"
	"github.com/dbbuilder/termkeep/internal/monitor"
	"github.com/dbbuilder/termkeep/internal/platform"
	"github.com/dbbuilder/termkeep/internal/web"
	"github.com/dbbuilder/termkeep/internal/winsys"
)

func handleStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configDir := fs.String("config-dir", "", "Override the state directory (default ~/"+config.DirName+")")
	logLevel := fs.String("log-level", "", "Override log level (debug, info, warn, error)")
	webFlag := fs.Bool("web", false, "Enable the status web server")
	webAddr := fs.String("web-addr", "", "Status server listen address (implies --web)")
	fs.Usage = func() {
		fmt.Println("Usage: termkeep start [options]")
		fmt.Println()
		fmt.Println("Run the monitor loop until interrupted.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if *configDir != "" {
		config.SetDir(*configDir)
	}

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v (using defaults)\n", err)
	}
	if *logLevel != "" {
		settings.Logs.Level = *logLevel
	}
	if *webAddr != "" {
		*webFlag = true
		settings.Web.Addr = *webAddr
	}
	if *webFlag {
		settings.Web.Enabled = true
	}

	stateDir, err := config.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot resolve state directory: %v\n", err)
		os.Exit(1)
	}

	initLogging(stateDir, settings)
	defer logging.Shutdown()
	log := logging.ForComponent(logging.CompCLI)

	sys, err := winsys.Native()
	if err != nil {
		if errors.Is(err, winsys.ErrUnsupported) {
			p := platform.Detect()
			fmt.Fprintf(os.Stderr, "termkeep start requires Windows (detected: %s).\n", p)
			if platform.IsWSL() {
				fmt.Fprintln(os.Stderr, "WSL cannot reach Win32 windows directly; run the Windows build of termkeep.exe from the host instead.")
			}
		} else {
			fmt.Fprintf(os.Stderr, "Window system unavailable: %v\n", err)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []monitor.Sink
	var hist *history.DB
	var m *monitor.Monitor

	if settings.History.Enabled {
		hist, err = history.Open(filepath.Join(stateDir, history.FileName))
		if err != nil {
			log.Warn("history journal unavailable", slog.Any("error", err))
		} else {
			defer hist.Close()
			if perr := hist.Prune(30 * 24 * time.Hour); perr != nil {
				log.Debug("history prune failed", slog.Any("error", perr))
			}
			sinks = append(sinks, historySink(hist, func() monitor.Status {
				return m.Snapshot()
			}))
		}
	}

	events := monitor.NewBroadcaster()
	sinks = append(sinks, events)

	m = monitor.New(sys, settings, sinks...)

	// Config auto-reload. Watch failures degrade to a fixed config.
	if warn := platform.CheckFsnotifySupport(stateDir); warn != "" {
		log.Warn("config auto-reload may not work", slog.String("reason", warn))
	}
	watcher, err := config.Watch(func(s *config.Settings) {
		m.ApplySettings(s)
	})
	if err != nil {
		log.Warn("config watch unavailable, edits need a restart", slog.Any("error", err))
	} else {
		defer watcher.Close()
	}

	if settings.Web.Enabled {
		srv := web.NewServer(web.Config{Addr: settings.Web.Addr},
			m.Snapshot, m.Tracker(), hist, events)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("status server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	fmt.Printf("termkeep v%s monitoring (threshold %s, poll %s). Ctrl+C to stop.\n",
		Version, settings.InactivityThreshold(), settings.PollingInterval())

	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Monitor stopped: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Stopped.")
}

func initLogging(stateDir string, s *config.Settings) {
	logging.Init(logging.Config{
		LogDir:     stateDir,
		Level:      s.Logs.Level,
		Format:     s.Logs.Format,
		MaxSizeMB:  s.Logs.MaxSizeMB,
		MaxBackups: s.Logs.MaxBackups,
		MaxAgeDays: s.Logs.MaxAgeDays,
		Compress:   s.Logs.Compress,
	})
}

// historySink journals monitor events; statistics snapshots store the full
// component counters as JSON.
func historySink(db *history.DB, status func() monitor.Status) monitor.Sink {
	return monitor.SinkFunc(func(ev monitor.Event) {
		var err error
		switch ev.Kind {
		case monitor.EventStats:
			err = db.RecordSnapshot(status())
		default:
			err = db.RecordAction(history.Action{
				Time:     ev.Time,
				Kind:     string(ev.Kind),
				Handle:   uint64(ev.Handle),
				Process:  ev.Process,
				Duration: ev.Duration,
				Detail:   ev.Detail,
			})
		}
		if err != nil {
			logging.ForComponent(logging.CompHistory).
				Debug("journal write failed", slog.Any("error", err))
		}
	})
}
