package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	rfc2217 "git2.jad.ru/MeterRS485/rfc2217-client"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/api"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/bridge"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/config"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/localport"
)

// Build-time variables (set via ldflags)
var (
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	log.Infof("RFC 2217 bridge starting... (build: %s, commit: %s)", BuildDate, GitCommit)
	log.Infof("Config: remote=%s device=%q api_port=%q keepalive=%v idle=%v debug=%v",
		cfg.Address(), cfg.Device, cfg.APIPort, cfg.KeepAlive, cfg.IdleTimeout, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Errorf("%v", err)
		logger.Sync()
		os.Exit(1)
	}
	log.Info("RFC 2217 bridge stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	params, err := cfg.ModemParameters()
	if err != nil {
		return err
	}

	opts := []rfc2217.Option{
		rfc2217.WithLogger(log),
		rfc2217.WithNegotiationTimeout(cfg.InitTimeout),
		rfc2217.WithDialTimeout(cfg.DialTimeout),
	}
	if cfg.KeepAlive > 0 {
		opts = append(opts, rfc2217.WithKeepAlive(cfg.KeepAlive, 10*time.Second, 3))
	}
	if cfg.ProxyHeader > 0 {
		opts = append(opts, rfc2217.WithProxyHeader(cfg.ProxyHeader))
	}
	if cfg.TextMode {
		opts = append(opts, rfc2217.WithTextMode())
	}

	port, err := rfc2217.Dial(ctx, cfg.Address(), params, opts...)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Address(), err)
	}
	log.Infof("Remote port %s ready (%s)", cfg.Address(), port.ModemParameters())

	local, err := localport.Open(cfg.Device, port.ModemParameters())
	if err != nil {
		port.Close()
		return fmt.Errorf("open local port: %w", err)
	}
	// The device name is what users attach to, print it even when logging is quiet
	fmt.Println(local.Name())

	br := bridge.New(port, local, bridge.Config{
		IdleTimeout: cfg.IdleTimeout,
		Debug:       cfg.Debug,
		Logger:      log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := br.Run(gctx)
		if err == nil && ctx.Err() == nil {
			// The remote or local side went away on its own
			return errors.New("bridge closed")
		}
		return err
	})

	if cfg.APIPort != "" {
		apiServer := api.NewServer(cfg, port, br, log)
		apiServer.OnParameters(local.SetParameters)
		g.Go(func() error {
			return apiServer.Start(gctx)
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		log.Info("Shutting down")
		return nil
	}
	return err
}
