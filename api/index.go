package handler

import (
	"net/http"

	"lodge/config"
	"lodge/di"
	"lodge/shared/logger"
)

// Handler serves the API as a serverless function. Scheduled sync is driven by the
// platform cron calling POST /v1/sync with the cron secret.
func Handler(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = r.URL.String()

	cfg := config.Get()

	logger.InitLogger()

	logger.SetLogLevel(cfg)

	app := di.InitializeService()
	app.HTTP.ServeHTTP(w, r)
}
