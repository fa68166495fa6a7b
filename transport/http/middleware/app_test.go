package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"lodge/config"
	otelMocks "lodge/infras/otel/mocks"
	cacheMocks "lodge/shared/cache/mocks"
	"lodge/shared/constant"
	"lodge/transport/http/middleware"
)

func TestCronSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		code   int
		caller string
	}{
		{name: "no secret configured", code: http.StatusOK},
		{name: "missing header", secret: "s3cret", code: http.StatusUnauthorized},
		{name: "wrong secret", secret: "s3cret", header: "Bearer guess", code: http.StatusUnauthorized},
		{name: "secret without bearer prefix", secret: "s3cret", header: "s3cret", code: http.StatusUnauthorized},
		{name: "matching secret", secret: "s3cret", header: "Bearer s3cret", code: http.StatusOK, caller: middleware.CronActor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Sync.CronSecret = tt.secret

			app := middleware.NewAppMiddleware(otelMocks.NewOtel(), cfg, cacheMocks.NewMockRedisCache(gomock.NewController(t)))

			req := httptest.NewRequest(http.MethodPost, "/v1/sync", nil)
			if tt.header != "" {
				req.Header.Set(constant.RequestHeaderAuthorization, tt.header)
			}

			rec := httptest.NewRecorder()
			app.CronSecret(whoami(http.StatusOK)).ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)

			if tt.code == http.StatusOK {
				assert.Equal(t, tt.caller, rec.Body.String())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	newLimited := func(t *testing.T) (http.Handler, *cacheMocks.MockRedisCache) {
		t.Helper()

		cfg := &config.Config{}
		cfg.App.RateLimiter.Enable = true
		cfg.App.RateLimiter.MaxRequests = 2
		cfg.App.RateLimiter.WindowSeconds = 60

		redisCache := cacheMocks.NewMockRedisCache(gomock.NewController(t))
		app := middleware.NewAppMiddleware(otelMocks.NewOtel(), cfg, redisCache)

		return app.RateLimit()(whoami(http.StatusOK)), redisCache
	}

	request := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/v1/rooms", nil)
		req.Header.Set(constant.RequestHeaderForwardedFor, "203.0.113.7, 10.0.0.1")
		req.Header.Set(constant.RequestHeaderUserAgent, "curl/8")

		return req
	}

	const key = "limiter:203.0.113.7:curl/8"

	t.Run("first request opens a window", func(t *testing.T) {
		handler, redisCache := newLimited(t)

		redisCache.EXPECT().Increment(gomock.Any(), key, time.Minute).Return(int64(1), nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request())

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get(constant.RequestHeaderRateLimit))
		assert.Equal(t, "1", rec.Header().Get(constant.RequestHeaderRateLimitRemaining))
	})

	t.Run("over the limit", func(t *testing.T) {
		handler, redisCache := newLimited(t)

		redisCache.EXPECT().Increment(gomock.Any(), key, time.Minute).Return(int64(3), nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request())

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get(constant.RequestHeaderRateLimitRemaining))
	})

	t.Run("cache outage lets traffic through", func(t *testing.T) {
		handler, redisCache := newLimited(t)

		redisCache.EXPECT().Increment(gomock.Any(), key, time.Minute).Return(int64(0), errors.New("connection refused"))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request())

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestTracing(t *testing.T) {
	recorder := otelMocks.NewRecordingOtel()

	cfg := &config.Config{}
	cfg.App.Name = "lodge"

	app := middleware.NewAppMiddleware(recorder, cfg, cacheMocks.NewMockRedisCache(gomock.NewController(t)))

	router := chi.NewRouter()
	router.Use(app.Tracing)
	router.Get("/v1/rooms/{id}", whoami(http.StatusInternalServerError))
	router.Get("/health", whoami(http.StatusOK))

	for _, path := range []string{"/v1/rooms/42", "/health"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	failed := recorder.Scope("GET /v1/rooms/42")
	require.NotNil(t, failed)
	assert.True(t, failed.Ended)
	assert.Len(t, failed.Errors, 1)
	assert.Equal(t, http.StatusInternalServerError, failed.Attributes["http.status_code"])
	assert.Equal(t, "/v1/rooms/{id}", failed.Attributes["http.route"])

	healthy := recorder.Scope("GET /health")
	require.NotNil(t, healthy)
	assert.Empty(t, healthy.Errors)
}

func TestCORS_Disabled(t *testing.T) {
	app := middleware.NewAppMiddleware(otelMocks.NewOtel(), &config.Config{}, cacheMocks.NewMockRedisCache(gomock.NewController(t)))

	req := httptest.NewRequest(http.MethodGet, "/v1/rooms", nil)
	req.Header.Set("Origin", "https://evil.example.com")

	rec := httptest.NewRecorder()
	app.CORS()(whoami(http.StatusOK)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
