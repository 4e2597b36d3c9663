// Package serviceutil holds small helpers shared by long-running
// entrypoints.
package serviceutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}

func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(1)
}

// StartHttpServer serves the handler over h2c so plaintext http/2
// clients work alongside http/1.
func StartHttpServer(addr string, handler http.Handler) {
	slog.Info("listening on http", "addr", addr)
	err := http.ListenAndServe(addr, h2c.NewHandler(handler, &http2.Server{}))
	if err != nil {
		Fatal(fmt.Sprintf("failed to listen on %s", addr), err)
	}
}
