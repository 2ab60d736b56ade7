// Package cmd wires the gateway server and the config watcher for the command line.
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/assessly/assessly-gateway/internal/api"
	"github.com/assessly/assessly-gateway/internal/config"
	"github.com/assessly/assessly-gateway/internal/logging"
	"github.com/assessly/assessly-gateway/internal/watcher"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// StartService runs the gateway in the foreground until SIGINT or SIGTERM.
func StartService(cfg *config.Config, configPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runService(ctx, cfg, configPath); err != nil {
		log.Errorf("gateway stopped: %v", err)
	}
}

// StartServiceBackground starts the gateway in a goroutine. Calling cancel shuts
// it down; done is closed once shutdown has finished.
func StartServiceBackground(cfg *config.Config, configPath string) (cancel func(), done <-chan struct{}) {
	ctx, cancelFn := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		if err := runService(ctx, cfg, configPath); err != nil {
			log.Errorf("embedded gateway stopped: %v", err)
		}
	}()
	return cancelFn, doneCh
}

func runService(ctx context.Context, cfg *config.Config, configPath string) error {
	server, err := api.NewServer(cfg)
	if err != nil {
		return err
	}

	if configPath != "" {
		w, errWatch := watcher.NewWatcher(configPath, func(newCfg *config.Config) {
			if errLog := logging.ConfigureLogOutput(newCfg); errLog != nil {
				log.Warnf("failed to reconfigure log output: %v", errLog)
			}
			server.UpdateConfig(newCfg)
		})
		if errWatch != nil {
			log.Warnf("config hot reload disabled: %v", errWatch)
		} else {
			w.SetConfig(cfg)
			if errStart := w.Start(ctx); errStart != nil {
				log.Warnf("config hot reload disabled: %v", errStart)
			}
			defer func() {
				if errStop := w.Stop(); errStop != nil {
					log.Debugf("watcher stop: %v", errStop)
				}
			}()
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err = <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-errCh
}
