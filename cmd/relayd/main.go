package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"grab-relay/internal/alert"
	"grab-relay/internal/config"
	"grab-relay/internal/server"
	"grab-relay/internal/store"
	"grab-relay/internal/upstream"
	"grab-relay/internal/wstoken"
)

// Options are the relayd command line flags.
type Options struct {
	ConfigPath string `short:"c" long:"config" description:"optional config yaml path"`
	Port       int    `short:"p" long:"port" description:"listen port, overrides config and PORT"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fatal(err.Error())
	}
}

func run(args []string) error {
	options, err := parseOptions(args)
	if err != nil {
		return err
	}
	if options == nil {
		return nil
	}

	cfg, err := loadConfig(options.ConfigPath)
	if err != nil {
		return err
	}
	if options.Port != 0 {
		cfg.Server.Port = options.Port
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	token, err := wstoken.New(cfg.WSToken.Initial, cfg.WSToken.Prefix)
	if err != nil {
		return err
	}
	alerts := buildAlertManager(cfg)
	if alerts != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := alerts.Close(closeCtx); err != nil {
				fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Server, server.Deps{
		Store:   store.New(),
		Token:   token,
		Grabber: upstream.NewClient(cfg.Upstream),
		Alerts:  alerts,
	})
	log.Printf("level=INFO event=relay_starting addr=%q upstream=%q insecure_skip_verify=%t", cfg.Server.Addr(), cfg.Upstream.URL, cfg.Upstream.SkipVerify())
	log.Printf("level=INFO event=ws_token_current token=%q", token.Get())
	return srv.Start(ctx)
}

// parseOptions returns nil options when only help was requested.
func parseOptions(args []string) (*Options, error) {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			return nil, nil
		}
		return nil, err
	}
	return options, nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func buildAlertManager(cfg config.Config) *alert.Manager {
	tg := cfg.Observability.Telegram
	if !tg.Enabled {
		return nil
	}
	return alert.NewManagerWithOptions("grab-relay", alert.NewTelegramNotifier(tg), alert.ManagerOptions{
		QueueSize:          cfg.Observability.Alerts.QueueSize,
		DropReportInterval: time.Duration(cfg.Observability.Alerts.DropReportSec) * time.Second,
	})
}
