package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"remotedesk/internal/capture"
	"remotedesk/internal/config"
	"remotedesk/internal/input/robot"
	"remotedesk/internal/logging"
	"remotedesk/internal/server"
)

const shutdownTimeout = 5 * time.Second

var (
	serveConfigPath    string
	serveListen        string
	serveControlSecret string
	serveViewSecret    string
	serveTopology      string
	serveModel         string
	serveFPS           int
	serveFullscreen    bool
	serveDisplay       int
	serveLogLevel      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the desktop to remote clients",
	Long: `Serve the local display and accept remote input.

Settings are read from the YAML file given with --config, then overridden by
any flags given on the command line. Without a control secret every client
gets full control.

Example:
  remotedesk serve --control-secret hunter2
  remotedesk serve --config remotedesk.yaml --model push --fps 15`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveConfigPath, "config", "c", "", "Path to a YAML config file")
	f.StringVar(&serveListen, "listen", config.DefaultListen, "Address to listen on")
	f.StringVar(&serveControlSecret, "control-secret", "", "Secret granting control access")
	f.StringVar(&serveViewSecret, "view-secret", "", "Secret granting view-only access")
	f.StringVar(&serveTopology, "topology", config.DefaultTopology, "Connection topology: split or combined")
	f.StringVar(&serveModel, "model", config.DefaultModel, "Frame delivery model: pull or push")
	f.IntVar(&serveFPS, "fps", config.DefaultFPS, "Push model frame rate")
	f.BoolVar(&serveFullscreen, "fullscreen", false, "Capture every display as one desktop")
	f.IntVar(&serveDisplay, "display", 0, "Display index to capture")
	f.StringVar(&serveLogLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	rootCmd.AddCommand(serveCmd)
}

// loadServeConfig reads the config file and applies explicitly set flags.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = serveListen
	}
	if flags.Changed("control-secret") {
		cfg.ControlSecret = serveControlSecret
	}
	if flags.Changed("view-secret") {
		cfg.ViewSecret = serveViewSecret
	}
	if flags.Changed("topology") {
		cfg.Topology = serveTopology
	}
	if flags.Changed("model") {
		cfg.Model = serveModel
	}
	if flags.Changed("fps") {
		cfg.FPS = serveFPS
	}
	if flags.Changed("fullscreen") {
		cfg.Fullscreen = serveFullscreen
	}
	if flags.Changed("display") {
		cfg.Display = serveDisplay
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = serveLogLevel
	}
	cfg.Clamp()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, os.Stderr, cfg.Log.NoColor)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, server.Deps{
		Capturer: capture.Screen{},
		Encoder:  capture.JPEG{},
		Injector: robot.Injector{},
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if cfg.ControlSecret == "" {
		log.Warn("no control secret configured, every client gets control")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Stop(shutdownCtx)
	if startErr := <-errCh; startErr != nil {
		err = errors.Join(err, startErr)
	}
	return err
}
