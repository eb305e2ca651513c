package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cyberinferno/eofclient/config"
	"github.com/cyberinferno/eofclient/logger"
	"github.com/cyberinferno/eofclient/metrics"
	"github.com/cyberinferno/eofclient/tcpserver"
)

var (
	configPath  = flag.String("config", "", "path to a YAML config file")
	addr        = flag.String("addr", "", "listen address, overrides server.addr")
	echo        = flag.Bool("echo", false, "reply with the received messages instead of server.reply")
	metricsAddr = flag.String("metrics", "", "address serving /metrics; empty disables it")
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
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log, err := logger.New(cfg.LoggerOptions("eofserver"), os.Stdout)
	if err != nil {
		return err
	}
	defer log.Close()

	reply := tcpserver.StaticReply(cfg.Server.Reply)
	if *echo {
		reply = tcpserver.EchoReply
	}

	srv := tcpserver.NewTCPServer("eof", cfg.Server.Addr, log, tcpserver.NewFramedSessionFunc(log, cfg.Server.ExpectMessages, reply, cfg.Terminator))
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	if *metricsAddr != "" {
		m := metrics.New("eofserver")
		if err := m.RegisterGauge("eofserver_sessions", "Connections currently being served", func() float64 {
			return float64(srv.Sessions.Len())
		}); err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", logger.Field{Key: "error", Value: err.Error()})
			}
		}()
		log.Info("serving metrics", logger.Field{Key: "addr", Value: *metricsAddr})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	return nil
}
