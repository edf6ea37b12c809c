// core is the replay core's own process: it loads a recording artifact and
// answers the external interfaces described in §6 over a handful of local
// unix sockets, until its client disconnects or it idles out.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

func main() {
	os.Exit(exec(context.Background(), os.Stdout, os.Stderr, os.Args[1:]))
}

// exec runs the CLI and returns the process exit code: 0 success, 2
// artifact corrupt, 3 bind failure, 4 idle-timeout exit, 1 unspecified
// (§6 CLI surface).
func exec(ctx context.Context, stdout, stderr io.Writer, args []string) (code int) {
	cfg := &rootConfig{stdout: stdout, stderr: stderr}
	flags := ff.NewFlagSet("core")
	cfg.register(flags)

	rootCommand := &ff.Command{
		Name:      "core",
		ShortHelp: "run the replay core over its local socket transport",
		Flags:     flags,
		Exec:      cfg.Exec,
	}

	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			code = 1
		}
	}()

	if err := rootCommand.Parse(args, ff.WithEnvVarPrefix("CORE")); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
		return 1
	}

	err := rootCommand.Run(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled), errors.As(err, &(run.SignalError{})):
		return 0
	case errors.Is(err, errIdleTimeout):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 4
	case errors.Is(err, errBindFailure):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 3
	case isArtifactCorrupt(err):
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}
