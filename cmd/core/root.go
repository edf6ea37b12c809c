package main

import (
	"errors"
	"io"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"
	"github.com/sirupsen/logrus"

	"github.com/codetracer/replay-core/corekit"
)

// errIdleTimeout and errBindFailure are the two sentinel conditions main
// maps to their own exit codes (§6); wrapping either in a returned error
// lets serveConfig.Exec stay an ordinary (error) func while main still
// tells them apart from an unspecified failure.
var (
	errIdleTimeout = errors.New("idle timeout exceeded")
	errBindFailure = errors.New("bind failed")
)

func isArtifactCorrupt(err error) bool {
	return errors.Is(err, corekit.ArtifactCorrupt)
}

type rootConfig struct {
	stdout io.Writer
	stderr io.Writer

	TraceDir    string        `ff:" long: trace-dir    | placeholder: DIR  | usage: recording artifact directory (required) "`
	Socket      string        `ff:"          long: socket        | placeholder: PATH | usage: override the control socket path (default: <runtime-dir>/ct_socket) "`
	DAPSocket   string        `ff:"          long: dap-socket    | placeholder: PATH | usage: override the DAP socket path (default: <runtime-dir>/ct_dap_socket) "`
	RuntimeDir  string        `ff:"          long: runtime-dir   | placeholder: DIR  | usage: directory holding the process-scoped sockets (default: a temp dir) "`
	LogLevel    string        `ff:" short: l | long: log-level   | placeholder: LEVEL| usage: log level: panic, fatal, error, warn, info, debug, trace "`
	IdleTimeout time.Duration `ff:"          long: idle-timeout  | placeholder: DUR  | usage: exit with code 4 after this long with no accepted connection "`
	DebugAddr   string        `ff:"          long: debug-addr    | placeholder: HOST:PORT | usage: serve the SSE status mirror and Prometheus metrics here (default: disabled) "`

	log *logrus.Logger
}

func (cfg *rootConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{
		LongName:    "trace-dir",
		Value:       ffval.NewValue(&cfg.TraceDir),
		Usage:       "recording artifact directory (required)",
		Placeholder: "DIR",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "socket",
		Value:       ffval.NewValue(&cfg.Socket),
		Usage:       "override the control socket path (default: <runtime-dir>/ct_socket)",
		Placeholder: "PATH",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "dap-socket",
		Value:       ffval.NewValue(&cfg.DAPSocket),
		Usage:       "override the DAP socket path (default: <runtime-dir>/ct_dap_socket)",
		Placeholder: "PATH",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "runtime-dir",
		Value:       ffval.NewValue(&cfg.RuntimeDir),
		Usage:       "directory holding the process-scoped sockets (default: a temp dir)",
		Placeholder: "DIR",
	})
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	fs.AddFlag(ff.FlagConfig{
		ShortName:   'l',
		LongName:    "log-level",
		Value:       ffval.NewEnum(&cfg.LogLevel, "panic", "fatal", "error", "warn", "info", "debug", "trace"),
		Usage:       "log level: panic, fatal, error, warn, info, debug, trace",
		Placeholder: "LEVEL",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "idle-timeout",
		Value:       ffval.NewValue(&cfg.IdleTimeout),
		Usage:       "exit with code 4 after this long with no accepted connection",
		Placeholder: "DUR",
	})
	fs.AddFlag(ff.FlagConfig{
		LongName:    "debug-addr",
		Value:       ffval.NewValue(&cfg.DebugAddr),
		Usage:       "serve the SSE status mirror and Prometheus metrics here (default: disabled)",
		Placeholder: "HOST:PORT",
	})
}

func (cfg *rootConfig) newLogger() (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(cfg.stderr)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, corekit.NewError(corekit.KindConfig, "core.newLogger", "invalid --log-level "+cfg.LogLevel, err)
	}
	log.SetLevel(level)
	return log, nil
}
