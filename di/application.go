package di

import (
	syncService "lodge/internal/domains/sync/service"
	"lodge/transport/http"
)

// Application is everything cmd/app runs: the API and the calendar sync scheduler.
type Application struct {
	HTTP      *http.HTTP
	Scheduler *syncService.Scheduler
}
