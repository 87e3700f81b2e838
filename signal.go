package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// exitInterrupted is the conventional status for a process killed by SIGINT.
const exitInterrupted = 130

// errInterrupted is the cancellation cause after the first signal.
var errInterrupted = errors.New("interrupted")

// interruptHandler turns SIGINT/SIGTERM into upload cancellation. The first
// signal cancels the context so chunk uploads abort and keep their resume
// records; a second one exits at once.
type interruptHandler struct {
	signals <-chan os.Signal
	stop    func()
	exit    func(code int)
	notice  func(format string, args ...any)
	logger  *slog.Logger
}

// shutdownContext installs the process signal handler for an upload command.
func shutdownContext(parent context.Context, cc *CLIContext) context.Context {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	h := &interruptHandler{
		signals: sigCh,
		stop:    func() { signal.Stop(sigCh) },
		exit:    os.Exit,
		notice:  cc.Statusf,
		logger:  cc.Logger,
	}

	return h.watch(parent)
}

func (h *interruptHandler) watch(parent context.Context) context.Context {
	ctx, cancel := context.WithCancelCause(parent)

	go func() {
		defer h.stop()

		select {
		case sig := <-h.signals:
			h.logger.Info("received signal, stopping uploads", slog.String("signal", sig.String()))
			h.notice("Stopping uploads, press Ctrl-C again to quit immediately.\n")
			cancel(errInterrupted)
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-h.signals:
			h.logger.Warn("received second signal, exiting", slog.String("signal", sig.String()))
			h.exit(exitInterrupted)
		case <-parent.Done():
		}
	}()

	return ctx
}
