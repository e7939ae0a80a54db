package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kshitij0O7/bitquery-x402/pkg/config"
	xhttp "github.com/Kshitij0O7/bitquery-x402/pkg/http"
	applogger "github.com/Kshitij0O7/bitquery-x402/pkg/logger"
)

// MaintenanceInterval is how often housekeeping tasks run.
const MaintenanceInterval = time.Minute

// Task is a periodic housekeeping job.
type Task func()

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	tasks      []Task
	closers    []io.Closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server) *App {
	return &App{cfg: cfg, log: l, httpServer: srv}
}

// AddTask registers a periodic housekeeping job.
func (a *App) AddTask(t Task) {
	if t != nil {
		a.tasks = append(a.tasks, t)
	}
}

// AddCloser registers a resource released on shutdown, in reverse order.
func (a *App) AddCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("paid bitquery api running",
		applogger.String("addr", a.httpServer.Addr()),
		applogger.String("env", a.cfg.Environment),
		applogger.Bool("bypass", a.cfg.Payment.Bypass),
		applogger.Bool("relay", a.cfg.Relay.Enabled()),
	)

	go a.maintain(ctx)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) maintain(ctx context.Context) {
	if len(a.tasks) == 0 {
		return
	}
	t := time.NewTicker(MaintenanceInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, task := range a.tasks {
				task()
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}
