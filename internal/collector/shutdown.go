package collector

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler creates a context that is cancelled on SIGTERM or SIGINT.
// It calls shutdownFunc before cancelling, and a second signal forces exit.
// The returned stop function releases the signal channel.
func SetupSignalHandler(parent context.Context, shutdownFunc func(context.Context)) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("[Signal] Received %v, finishing current player...", sig)
		case <-ctx.Done():
			return
		}

		if shutdownFunc != nil {
			shutdownFunc(ctx)
		}
		cancel()

		// Handle second signal - force exit
		sig := <-sigCh
		log.Printf("[Signal] Received second %v, forcing exit", sig)
		os.Exit(1)
	}()

	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
