package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ayusman/camrover/internal/log"
	"github.com/ayusman/camrover/internal/roversim"
)

func main() {
	addr := flag.String("listen", ":8081", "address to serve /control and /status on")
	delay := flag.Duration("delay", 0, "artificial latency added to every control request")
	level := flag.String("log-level", "debug", "debug, info, warn or error")
	flag.Parse()

	log.Init(*level)

	h := roversim.New()
	h.SetDelay(*delay)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("rover simulator listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("rover simulator failed", "err", err)
		os.Exit(1)
	}

	s := h.State()
	log.Info("rover simulator stopped", "commands", s.Commands, "rejected", s.Rejected, "motion", s.Motion)
}
