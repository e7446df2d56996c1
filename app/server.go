package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// serve runs the HTTP server until ctx is cancelled, then shuts it down and waits for background workers.
func (app *application) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + app.config.Port,
		Handler:      app.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	shutdownError := make(chan error, 1)

	go func() {
		<-ctx.Done()

		app.logger.Info("shutting down server", slog.String("addr", srv.Addr))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)

		app.logger.Info("waiting for background workers")
		app.wg.Wait()

		shutdownError <- err
	}()

	app.logger.Info("starting server", slog.String("addr", srv.Addr), slog.String("env", app.config.Environment))

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", slog.String("addr", srv.Addr))

	return nil
}

// background runs fn on the application's wait group.
func (app *application) background(name string, fn func() error) {
	app.wg.Add(1)

	go func() {
		defer app.wg.Done()

		if err := fn(); err != nil {
			app.logger.Error("background worker exited", slog.String("worker", name), slog.String("error", err.Error()))
		}
	}()
}
