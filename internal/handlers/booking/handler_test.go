package booking_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"lodge/config"
	"lodge/infras/kafka"
	otelMocks "lodge/infras/otel/mocks"
	bookingMocks "lodge/internal/domains/booking/mocks"
	"lodge/internal/domains/booking/model/dto"
	"lodge/internal/domains/booking/service"
	bookingHandler "lodge/internal/handlers/booking"
	cacheMocks "lodge/shared/cache/mocks"
)

const (
	roomID  = "8b0f2b63-5e1c-4c2a-9a55-2f1f4c3f0a01"
	unknown = "0c4b7f6e-1d1a-4e8e-9a0b-6f2d9c1e7a33"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()

	redisCache := cacheMocks.NewMockRedisCache(gomock.NewController(t))
	redisCache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("miss")).AnyTimes()
	redisCache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	redisCache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	redisCache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	cfg := &config.Config{}
	cfg.Cache.TTL = 3600

	otel := otelMocks.NewOtel()
	store := bookingMocks.NewStore()
	store.AddRoom(roomID, "Teak")

	handler := bookingHandler.New(service.New(store, store.Guests(), cfg, redisCache, kafka.New(cfg, otel), otel), otel)

	router := chi.NewRouter()
	router.Route("/v1", handler.Router)

	return router
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func createBody(checkIn, checkOut string) string {
	return `{"room_id":"` + roomID + `","guest_name":"Ayu","guest_phone":"0812","check_in":"` + checkIn + `","check_out":"` + checkOut + `"}`
}

type errorBody struct {
	Error   string              `json:"error"`
	Details dto.ConflictDetails `json:"details"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var body T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return body
}

func TestHandler_GetBookings_MissingDateRange(t *testing.T) {
	router := newRouter(t)

	for _, target := range []string{
		"/v1/bookings",
		"/v1/bookings?start_date=2025-06-01",
		"/v1/bookings?end_date=2025-06-30",
	} {
		t.Run(target, func(t *testing.T) {
			rec := serve(router, http.MethodGet, target, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Missing date range", decode[errorBody](t, rec).Error)
		})
	}
}

func TestHandler_CreateAndList(t *testing.T) {
	router := newRouter(t)

	rec := serve(router, http.MethodPost, "/v1/bookings", createBody("2025-06-01", "2025-06-03"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[dto.BookingResponse](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "2025-06-01", created.CheckIn)
	assert.Equal(t, "2025-06-03", created.CheckOut)
	assert.Equal(t, "Ayu", created.GuestName)

	rec = serve(router, http.MethodGet, "/v1/bookings?start_date=2025-06-01&end_date=2025-06-30", "")
	require.Equal(t, http.StatusOK, rec.Code)

	listed := decode[[]dto.BookingResponse](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	require.NotNil(t, listed[0].Room)
	assert.Equal(t, "Teak", listed[0].Room.Name)

	rec = serve(router, http.MethodGet, "/v1/bookings?start_date=2025-07-01&end_date=2025-07-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_CreateBooking_DateConflict(t *testing.T) {
	router := newRouter(t)

	rec := serve(router, http.MethodPost, "/v1/bookings", createBody("2025-06-01", "2025-06-03"))
	require.Equal(t, http.StatusCreated, rec.Code)

	first := decode[dto.BookingResponse](t, rec)

	rec = serve(router, http.MethodPost, "/v1/bookings", createBody("2025-06-02", "2025-06-04"))
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode[errorBody](t, rec)
	assert.Contains(t, body.Error, "date conflict")
	assert.Equal(t, first.ID, body.Details.BookingID)
	assert.Equal(t, "2025-06-01", body.Details.CheckIn)

	rec = serve(router, http.MethodPost, "/v1/bookings", createBody("2025-06-03", "2025-06-05"))
	assert.Equal(t, http.StatusCreated, rec.Code, "checkout day is free for the next stay")
}

func TestHandler_CreateBooking_InvalidBody(t *testing.T) {
	router := newRouter(t)

	rec := serve(router, http.MethodPost, "/v1/bookings", createBody("2025-06-03", "2025-06-01"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode[errorBody](t, rec).Error)
}

func TestHandler_UpdateAndDeleteByQueryID(t *testing.T) {
	router := newRouter(t)

	rec := serve(router, http.MethodPost, "/v1/bookings", createBody("2025-06-01", "2025-06-03"))
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decode[dto.BookingResponse](t, rec)

	rec = serve(router, http.MethodPut, "/v1/bookings?id="+created.ID, `{"guest_name":"Budi"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[dto.BookingResponse](t, rec)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Budi", updated.GuestName)

	rec = serve(router, http.MethodDelete, "/v1/bookings?id="+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = serve(router, http.MethodDelete, "/v1/bookings?id="+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UnknownOrMissingID(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		code    int
		message string
	}{
		{
			name:    "get unknown",
			method:  http.MethodGet,
			target:  "/v1/bookings/" + unknown,
			code:    http.StatusNotFound,
			message: "booking not found",
		},
		{
			name:    "update unknown",
			method:  http.MethodPut,
			target:  "/v1/bookings?id=" + unknown,
			body:    `{"guest_name":"Budi"}`,
			code:    http.StatusNotFound,
			message: "booking not found",
		},
		{
			name:    "delete unknown",
			method:  http.MethodDelete,
			target:  "/v1/bookings?id=" + unknown,
			code:    http.StatusNotFound,
			message: "booking not found",
		},
		{
			name:    "update without id",
			method:  http.MethodPut,
			target:  "/v1/bookings",
			body:    `{"guest_name":"Budi"}`,
			code:    http.StatusBadRequest,
			message: "Missing booking id",
		},
		{
			name:    "delete without id",
			method:  http.MethodDelete,
			target:  "/v1/bookings",
			code:    http.StatusBadRequest,
			message: "Missing booking id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, tt.method, tt.target, tt.body)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, decode[errorBody](t, rec).Error)
		})
	}
}
