package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// After the first signal the default handler comes back, so a second
	// Ctrl-C kills a conversion that hangs inside the encoder.
	go func() {
		<-ctx.Done()
		stop()
	}()

	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
