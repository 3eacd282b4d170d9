package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"frontbridge/internal/config"
	"frontbridge/internal/dispatch"
	"frontbridge/internal/front"
	"frontbridge/internal/relay"
	"frontbridge/internal/server"
	"frontbridge/internal/sinch"
	"frontbridge/internal/store"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "frontbridge",
		Short: "frontbridge: webhook bridge between Sinch conversations and a Front inbox",
		Long:  "frontbridge receives webhook events from the Sinch Conversation API and Front, translates them into the counterpart's payload format, and relays media attachments between the two.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to an optional YAML config file (environment overrides it)")

	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	media, err := store.NewMedia(store.MediaConfig{
		Dir:    cfg.Media.Dir,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("media store: %w", err)
	}

	var ledger *store.Ledger
	if cfg.Media.LedgerPath != "" {
		ledger, err = store.OpenLedger(cfg.Media.LedgerPath, logger)
		if err != nil {
			return fmt.Errorf("relay ledger: %w", err)
		}
		defer ledger.Close()
	} else {
		logger.Info("relay ledger disabled")
	}

	frontClient := front.NewClient(front.ClientConfig{
		IncomingURI: cfg.Front.IncomingURI,
		Token:       cfg.Front.Token,
		Timeout:     cfg.HTTPTimeout(),
		Logger:      logger,
	})
	sinchClient := sinch.NewClient(sinch.ClientConfig{
		SendURL:      cfg.SinchSendURL(),
		AppID:        cfg.Sinch.AppID,
		ClientID:     cfg.Sinch.ClientID,
		ClientSecret: cfg.Sinch.ClientSecret,
		Timeout:      cfg.HTTPTimeout(),
		Logger:       logger,
	})

	mediaRelay := relay.New(relay.Config{
		Downloader: frontClient,
		Media:      media,
		Ledger:     ledger,
		PublicHost: cfg.Server.PublicHost,
		Logger:     logger,
	})

	dispatcher := dispatch.New(100, logger)
	go dispatcher.Run(ctx)
	defer dispatcher.Close()

	srv := server.New(server.Config{
		Port:       cfg.Server.Port,
		Front:      frontClient,
		Sinch:      sinchClient,
		Relay:      mediaRelay,
		Media:      media,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	logger.Info("starting frontbridge", "version", version, "public_host", cfg.Server.PublicHost)
	return srv.Start(ctx)
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and show relay ledger stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Info("config valid",
				"front_incoming_uri", cfg.Front.IncomingURI,
				"sinch_region", cfg.Sinch.Region,
				"sinch_project_id", cfg.Sinch.ProjectID,
				"public_host", cfg.Server.PublicHost,
				"port", cfg.Server.Port,
			)

			if cfg.Media.LedgerPath == "" {
				return nil
			}
			ledger, err := store.OpenLedger(cfg.Media.LedgerPath, logger)
			if err != nil {
				return fmt.Errorf("relay ledger: %w", err)
			}
			defer ledger.Close()

			stats, err := ledger.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("ledger stats: %w", err)
			}
			logger.Info("relay ledger", "relays", stats.Relays, "total_bytes", stats.TotalBytes)
			return nil
		},
	}
}
