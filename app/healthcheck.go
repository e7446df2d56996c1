package main

import (
	"context"
	"net/http"
	"time"
)

type brokerHealth interface {
	IsConnected() bool
}

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := map[string]string{"database": "up", "broker": "up"}
	status, code := "available", http.StatusOK

	if err := app.db.PingContext(ctx); err != nil {
		app.logError(r, err)
		deps["database"] = "down"
	}

	if app.broker == nil || !app.broker.IsConnected() {
		deps["broker"] = "down"
	}

	if deps["database"] == "down" || deps["broker"] == "down" {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	env := envelope{
		"status":       status,
		"dependencies": deps,
		"system_info": map[string]string{
			"environment": app.config.Environment,
			"version":     app.config.Version,
		},
	}

	err := app.writeJSON(w, code, env, nil)
	if err != nil {
		app.logger.Error(err.Error())
		http.Error(w, "the server encountered a problem and could not process your request", http.StatusInternalServerError)
	}
}
