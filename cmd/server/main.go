// Package main provides the entry point for the Assessly gateway.
// The gateway serves the auth routes and the allow-listed upstream proxy, and can
// also run the terminal client, either against a running gateway or with an
// embedded one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/assessly/assessly-gateway/internal/cmd"
	"github.com/assessly/assessly-gateway/internal/config"
	"github.com/assessly/assessly-gateway/internal/logging"
	"github.com/assessly/assessly-gateway/internal/tui"
	"github.com/assessly/assessly-gateway/internal/util"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string
	var tuiMode bool
	var standalone bool
	var showVersion bool

	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.BoolVar(&tuiMode, "tui", false, "Start the terminal client")
	flag.BoolVar(&standalone, "standalone", false, "In TUI mode, start an embedded local gateway")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")

	flag.CommandLine.Usage = func() {
		out := flag.CommandLine.Output()
		_, _ = fmt.Fprintf(out, "Usage of %s\n", os.Args[0])
		flag.CommandLine.VisitAll(func(f *flag.Flag) {
			s := fmt.Sprintf("  -%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if name != "" {
				s += " " + name
			}
			s += "\n    " + usage
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
				s += fmt.Sprintf(" (default %s)", f.DefValue)
			}
			_, _ = fmt.Fprint(out, s+"\n")
		})
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("assessly-gateway %s, commit %s, built %s\n", Version, Commit, BuildDate)
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil && !errors.Is(errLoad, fs.ErrNotExist) {
		log.WithError(errLoad).Warn("failed to load .env file")
	}

	configFilePath := configPath
	if configFilePath == "" {
		configFilePath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadConfigOptional(configFilePath, configPath == "")
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}

	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}
	util.SetLogLevel(cfg)
	logging.SetVerboseAccessLog(cfg.RequestLog)
	log.Infof("assessly-gateway %s (commit %s, built %s)", Version, Commit, BuildDate)

	if !tuiMode {
		cmd.StartService(cfg, configFilePath)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !standalone {
		// Plain client mode: the gateway must already be running at client.base-url.
		if errRun := tui.Run(ctx, tui.NewClient(cfg), nil, os.Stdout); errRun != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", errRun)
		}
		return
	}
	runStandalone(ctx, cfg, configFilePath)
}

// runStandalone starts an embedded gateway, points the terminal client at it and
// routes all log output into the client's Logs tab.
func runStandalone(ctx context.Context, cfg *config.Config, configFilePath string) {
	hook := tui.NewLogHook(2000)
	hook.SetFormatter(&logging.LogFormatter{})
	log.AddHook(hook)

	origStdout := os.Stdout
	origStderr := os.Stderr
	origLogOutput := log.StandardLogger().Out
	log.SetOutput(io.Discard)

	devNull, errOpenDevNull := os.Open(os.DevNull)
	if errOpenDevNull == nil {
		os.Stdout = devNull
		os.Stderr = devNull
	}
	restoreIO := func() {
		os.Stdout = origStdout
		os.Stderr = origStderr
		log.SetOutput(origLogOutput)
		if devNull != nil {
			_ = devNull.Close()
		}
	}

	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	cfg.Client.BaseURL = "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port))

	cancel, done := cmd.StartServiceBackground(cfg, configFilePath)

	client := tui.NewClient(cfg)
	ready := false
	backoff := 100 * time.Millisecond
	for i := 0; i < 30; i++ {
		pingCtx, cancelPing := context.WithTimeout(ctx, time.Second)
		errPing := client.Ping(pingCtx)
		cancelPing()
		if errPing == nil {
			ready = true
			break
		}
		time.Sleep(backoff)
		if backoff < time.Second {
			backoff = time.Duration(float64(backoff) * 1.5)
		}
	}

	if !ready {
		restoreIO()
		cancel()
		<-done
		fmt.Fprintf(os.Stderr, "TUI error: embedded gateway is not ready\n")
		return
	}

	errRun := tui.Run(ctx, client, hook, origStdout)
	restoreIO()
	if errRun != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", errRun)
	}

	cancel()
	<-done
}
