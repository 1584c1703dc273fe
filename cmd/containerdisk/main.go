package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"containerdisk.run/cmd/containerdisk/deps"
)

const (
	// ReturnCodeSuccess is passed to os.Exit() when no error is reported.
	ReturnCodeSuccess = 0
	// ReturnCodeError is passed to os.Exit() if a command report an error.
	ReturnCodeError = 1
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context) int {
	container, err := deps.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ReturnCodeError
	}

	code := ReturnCodeSuccess
	if err := container.Invoke(func(cmd *cobra.Command) {
		if err := cmd.ExecuteContext(ctx); err != nil {
			code = ReturnCodeError
		}
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ReturnCodeError
	}

	return code
}
