package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyberinferno/eofclient/asyncclient"
	"github.com/cyberinferno/eofclient/config"
	"github.com/cyberinferno/eofclient/exchange"
	"github.com/cyberinferno/eofclient/logger"
	"github.com/cyberinferno/eofclient/metrics"
	"github.com/cyberinferno/eofclient/resolver"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	host       = flag.String("host", "", "peer host, overrides endpoint.host")
	port       = flag.Int("port", 0, "peer port, overrides endpoint.port")
	delay      = flag.Duration("delay", -1, "startup delay, overrides startup_delay")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Endpoint.Host = *host
	}
	if *port != 0 {
		cfg.Endpoint.Port = *port
	}
	if *delay >= 0 {
		cfg.StartupDelay = config.Duration{Duration: *delay}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LoggerOptions("eofclient"), os.Stdout)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if d := cfg.StartupDelay.Duration; d > 0 {
		log.Info("waiting before start", logger.Field{Key: "delay", Value: d.String()})
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r, closeResolver, err := resolver.FromConfig(cfg.Resolver)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeResolver(); err != nil {
			log.Warn("resolver close failed", logger.Field{Key: "error", Value: err.Error()})
		}
	}()

	driver := asyncclient.NewDriver(asyncclient.Config{
		DialTimeout:       cfg.DialTimeout.Duration,
		ReceiveBufferSize: cfg.ReceiveBufferSize,
		Terminator:        cfg.Terminator,
	}, log)
	defer driver.Close()

	m := metrics.New("eofclient")
	ex := exchange.New(cfg, driver, r, log)
	ex.UseMetrics(m)

	response, err := ex.Run(ctx)
	logSummary(log, m)
	if err != nil {
		return err
	}

	fmt.Printf("Response received : %s\n", response)
	return nil
}

func logSummary(log logger.Logger, m *metrics.Metrics) {
	snap, err := m.Snapshot()
	if err != nil {
		log.Warn("metrics snapshot failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}

	fields := make([]logger.Field, 0, len(snap))
	for k, v := range snap {
		fields = append(fields, logger.Field{Key: k, Value: v})
	}
	log.Debug("operation summary", fields...)
}
