package sync_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"lodge/config"
	otelMocks "lodge/infras/otel/mocks"
	syncMocks "lodge/internal/domains/sync/mocks"
	"lodge/internal/domains/sync/model"
	"lodge/internal/domains/sync/model/dto"
	syncHandler "lodge/internal/handlers/sync"
	cacheMocks "lodge/shared/cache/mocks"
	"lodge/shared/failure"
	"lodge/transport/http/middleware"
)

const cronSecret = "cron-secret"

func newRouter(t *testing.T) (http.Handler, *syncMocks.MockSync) {
	t.Helper()

	ctrl := gomock.NewController(t)
	svc := syncMocks.NewMockSync(ctrl)

	cfg := &config.Config{}
	cfg.Sync.CronSecret = cronSecret

	otel := otelMocks.NewOtel()
	handler := syncHandler.New(svc, middleware.NewAppMiddleware(otel, cfg, cacheMocks.NewMockRedisCache(ctrl)), otel)

	router := chi.NewRouter()
	router.Route("/v1", handler.Router)

	return router, svc
}

func trigger(router http.Handler, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestHandler_SyncAll(t *testing.T) {
	router, svc := newRouter(t)

	res := dto.SyncResponse{}
	res.Summarize([]dto.RoomResult{
		{RoomID: "room-1", RoomName: "Teak", SyncedCount: 3, Conflicts: 1},
		{RoomID: "room-2", RoomName: "Pine", Error: "feed returned 503"},
	})

	svc.EXPECT().SyncAll(gomock.Any(), model.TriggerManual).Return(res, nil)

	rec := trigger(router, "/v1/sync", "Bearer "+cronSecret)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.NotContains(t, body, "data")
	assert.Equal(t, true, body["success"])
	assert.InDelta(t, 3, body["synced_count"], 0)
	assert.InDelta(t, 1, body["conflicts"], 0)
	assert.InDelta(t, 1, body["failed_rooms"], 0)
	assert.Len(t, body["rooms"], 2)
}

func TestHandler_SyncAll_Errors(t *testing.T) {
	tests := []struct {
		name          string
		authorization string
		serviceErr    error
		code          int
	}{
		{
			name: "missing secret",
			code: http.StatusUnauthorized,
		},
		{
			name:          "wrong secret",
			authorization: "Bearer nope",
			code:          http.StatusUnauthorized,
		},
		{
			name:          "run in progress",
			authorization: "Bearer " + cronSecret,
			serviceErr:    failure.Conflict("a sync run is already in progress"),
			code:          http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := newRouter(t)

			if tt.serviceErr != nil {
				svc.EXPECT().SyncAll(gomock.Any(), model.TriggerManual).Return(dto.SyncResponse{}, tt.serviceErr)
			}

			rec := trigger(router, "/v1/sync", tt.authorization)

			assert.Equal(t, tt.code, rec.Code)

			var body struct {
				Error string `json:"error"`
			}

			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHandler_SyncRoom(t *testing.T) {
	router, svc := newRouter(t)

	svc.EXPECT().SyncRoom(gomock.Any(), "room-1").
		Return(dto.RoomResult{RoomID: "room-1", RoomName: "Teak", SyncedCount: 2}, nil)

	rec := trigger(router, "/v1/sync/rooms/room-1", "Bearer "+cronSecret)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data dto.RoomResult `json:"data"`
	}

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.SyncedCount)
}
