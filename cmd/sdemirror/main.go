// Command sdemirror keeps a relational mirror of the EVE Online static data
// export and serves it read-only over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/sdemirror/internal/sde"
	"github.com/JonMunkholm/sdemirror/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes.
const (
	exitSuccess       = 0
	exitRefreshFailed = 1
	exitSysError      = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: stdout, stderr: stderr}
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, errorLine(err))
		return exitCode(err)
	}
	return exitSuccess
}

// errorLine renders err for the terminal. Refresh failures get the mapped
// user message with its code.
func errorLine(err error) string {
	if userFacing(err) {
		return "Error: " + sde.FormatUserError(err)
	}
	return "Error: " + err.Error()
}

func exitCode(err error) int {
	if userFacing(err) {
		return exitRefreshFailed
	}
	return exitSysError
}

func userFacing(err error) bool {
	return sde.IsFatal(err) ||
		errors.Is(err, sde.ErrRefreshRunning) ||
		errors.Is(err, store.ErrUnknownTable)
}
