package sync

import (
	"net/http"

	"lodge/infras/otel"
	"lodge/internal/domains/sync/model"
	"lodge/internal/domains/sync/service"
	"lodge/shared/constant"
	"lodge/transport/http/middleware"
	"lodge/transport/http/response"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	service service.Sync
	app     middleware.AppMiddleware
	otel    otel.Otel
}

func New(service service.Sync, app middleware.AppMiddleware, otel otel.Otel) Handler {
	return Handler{
		service: service,
		app:     app,
		otel:    otel,
	}
}

func (handler *Handler) Router(router chi.Router) {
	router.Route("/sync", func(routerGroup chi.Router) {
		routerGroup.Use(handler.app.CronSecret)

		routerGroup.Post("/", handler.SyncAll)
		routerGroup.Post("/rooms/{id}", handler.SyncRoom)
	})
}

// SyncAll reconciles every room that has a calendar feed.
// @Summary Sync all external calendars
// @Description Pulls every room's feed and upserts its events. A broken feed is reported per room and never fails the run.
// @Tags Sync
// @Produce json
// @Success 200 {object} dto.SyncResponse
// @Failure 401 {object} response.Error
// @Failure 409 {object} response.Error "Another sync run is in progress"
// @Failure 500 {object} response.Error
// @Router /v1/sync [post]
// @Security CronSecret
func (handler *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".SyncAll")
	defer scope.End()

	res, err := handler.service.SyncAll(ctx, model.TriggerManual)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Msg("failed to sync calendars")

		response.WithError(w, err)

		return
	}

	scope.SetAttributes(map[string]any{
		"sync.synced_count": res.SyncedCount,
		"sync.conflicts":    res.Conflicts,
		"sync.failed_rooms": res.FailedRooms,
	})

	response.WithRaw(w, http.StatusOK, res)
}

// SyncRoom reconciles a single room's feed.
// @Summary Sync one room's calendar
// @Tags Sync
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Data[dto.RoomResult]
// @Failure 400 {object} response.Error "Room has no feed"
// @Failure 401 {object} response.Error
// @Failure 404 {object} response.Error
// @Failure 500 {object} response.Error
// @Router /v1/sync/rooms/{id} [post]
// @Security CronSecret
func (handler *Handler) SyncRoom(w http.ResponseWriter, r *http.Request) {
	ctx, scope := handler.otel.NewScope(r.Context(), constant.OtelHandlerScopeName, constant.OtelHandlerScopeName+".SyncRoom")
	defer scope.End()

	id := chi.URLParam(r, constant.RequestParamID)

	res, err := handler.service.SyncRoom(ctx, id)
	if err != nil {
		scope.TraceError(err)
		log.Error().Err(err).Str("room_id", id).Msg("failed to sync room")

		response.WithError(w, err)

		return
	}

	response.WithJSON(w, http.StatusOK, res)
}
