// Command digest builds topic news digests from search results and article
// text, on demand, over HTTP or on a schedule.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/digest/internal/news"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode separates caller mistakes from runtime failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, news.ErrValidation):
		return 2
	case errors.Is(err, news.ErrConfiguration):
		return 3
	default:
		return 1
	}
}
