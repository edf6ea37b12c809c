package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/codetracer/replay-core/corekit"
	"github.com/codetracer/replay-core/dispatch"
	"github.com/codetracer/replay-core/position"
	"github.com/codetracer/replay-core/stepping"
	"github.com/codetracer/replay-core/tracestore"
	"github.com/codetracer/replay-core/wire"
)

// Exec loads the recording at cfg.TraceDir, wires up the Dispatcher and its
// external interfaces (§6), and serves them until a signal, an idle
// timeout, or a fatal error ends the process.
func (cfg *rootConfig) Exec(ctx context.Context, _ []string) error {
	if cfg.TraceDir == "" {
		return corekit.NewError(corekit.KindConfig, "core.Exec", "--trace-dir is required", nil)
	}

	log, err := cfg.newLogger()
	if err != nil {
		return err
	}
	cfg.log = log

	store, err := tracestore.Open(cfg.TraceDir)
	if err != nil {
		return fmt.Errorf("opening trace dir %s: %w", cfg.TraceDir, err)
	}
	defer store.Close()

	runtimeDir := cfg.RuntimeDir
	if runtimeDir == "" {
		dir, err := os.MkdirTemp("", "codetracer-core-*")
		if err != nil {
			return corekit.NewError(corekit.KindUnexpected, "core.Exec", "creating runtime dir", err)
		}
		defer os.RemoveAll(dir)
		runtimeDir = dir
	}

	paths := wire.DefaultSocketPaths(runtimeDir)
	if cfg.Socket != "" {
		paths.Control = cfg.Socket
	}
	if cfg.DAPSocket != "" {
		paths.DAP = cfg.DAPSocket
	}

	bps := position.NewBreakpoints()
	posModel := position.New()
	engine := stepping.New(store, bps)
	status := dispatch.NewStatusBroker()
	metrics := dispatch.NewMetrics()
	dispatcher := dispatch.New(posModel, engine, status, metrics, log)
	backend := wire.NewCoreBackend(dispatcher, store, bps)
	bridge := wire.NewBridge(backend)
	comps := newComponents(store, dispatcher)

	var g run.Group

	idleCh := make(chan struct{}, 1)
	noteActivity := func() {
		select {
		case idleCh <- struct{}{}:
		default:
		}
	}

	for _, sock := range []struct {
		path string
		dap  bool
	}{
		{paths.Control, false},
		{paths.Client, false},
		{paths.IPC, false},
		{paths.Plugin, false},
		{paths.DAP, true},
	} {
		sock := sock
		ln, err := wire.Listen(sock.path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errBindFailure, sock.path, err)
		}
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return acceptLoop(ctx, ln, sock.dap, dispatcher, comps, bridge, noteActivity, log)
		}, func(error) {
			cancel()
			ln.Close()
		})
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return idleWatchdog(ctx, cfg.IdleTimeout, idleCh)
		}, func(error) {
			cancel()
		})
	}

	if cfg.DebugAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/status", wire.NewSSEHandler(status))
		mux.Handle("/tracepoints", wire.NewTracepointSSEHandler(comps.tpBroker))
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.DebugAddr, Handler: mux}
		g.Add(func() error {
			log.WithField("addr", cfg.DebugAddr).Info("debug http server listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		})
	}

	{
		g.Add(run.SignalHandler(ctx, os.Interrupt, os.Kill))
	}

	log.WithField("runtimeDir", runtimeDir).Info("core listening")
	return g.Run()
}

// idleWatchdog returns errIdleTimeout if no activity arrives on idleCh for
// timeout; a non-positive timeout disables the watchdog entirely (it then
// blocks until ctx is cancelled by a sibling actor).
func idleWatchdog(ctx context.Context, timeout time.Duration, idleCh <-chan struct{}) error {
	if timeout <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idleCh:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)
		case <-timer.C:
			return errIdleTimeout
		}
	}
}

// acceptLoop runs one socket's connection-accept loop, serving each
// accepted connection on its own goroutine. Concurrent connections are safe
// because every mutating request still funnels through the one Dispatcher,
// which serializes them regardless of which socket or connection they
// arrived on (§4.8).
func acceptLoop(ctx context.Context, ln net.Listener, isDAP bool, d *dispatch.Dispatcher, comps *components, bridge *wire.Bridge, noteActivity func(), log *logrus.Logger) error {
	type accepted struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan accepted)
	go func() {
		for {
			conn, err := ln.Accept()
			acceptCh <- accepted{conn, err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-acceptCh:
			if a.err != nil {
				return a.err
			}
			noteActivity()
			if isDAP {
				go serveDAPConn(ctx, a.conn, bridge, log)
			} else {
				go serveControlConn(ctx, a.conn, d, comps, log)
			}
		}
	}
}
