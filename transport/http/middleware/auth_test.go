package middleware_test

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
	"lodge/infras/jwt"
	jwtMocks "lodge/infras/jwt/mocks"
	otelMocks "lodge/infras/otel/mocks"
	"lodge/permissions"
	"lodge/shared/constant"
	"lodge/transport/http/middleware"
)

const apiKey = "internal-key"

// whoami echoes the caller recorded by the middleware chain.
func whoami(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(constant.ContextKeyUserID).(string)

		w.WriteHeader(code)
		_, _ = w.Write([]byte(userID))
	}
}

func newAuthRouter(t *testing.T) (http.Handler, *jwtMocks.MockJWT) {
	t.Helper()

	tokens := jwtMocks.NewMockJWT(gomock.NewController(t))

	cfg := &config.Config{}
	cfg.App.APIKey = apiKey

	authRole := middleware.NewAuthRoleMiddleware(tokens, otelMocks.NewOtel(), permissions.Get(), cfg)

	router := chi.NewRouter()
	router.Use(authRole.APIKey, authRole.Auth, authRole.RBAC)

	router.Get("/health", whoami(http.StatusOK))
	router.Route("/v1", func(v1 chi.Router) {
		v1.Route("/rooms", func(rooms chi.Router) {
			rooms.Get("/", whoami(http.StatusOK))
			rooms.Post("/", whoami(http.StatusCreated))
			rooms.Delete("/{id}", whoami(http.StatusOK))
		})
		v1.Route("/bookings", func(bookings chi.Router) {
			bookings.Get("/", whoami(http.StatusOK))
		})
	})

	return router, tokens
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body.Error
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		header  string
		setup   func(tokens *jwtMocks.MockJWT)
		code    int
		message string
		caller  string
	}{
		{
			name:   "public health check",
			method: http.MethodGet,
			path:   "/health",
			code:   http.StatusOK,
		},
		{
			name:   "public booking calendar",
			method: http.MethodGet,
			path:   "/v1/bookings",
			code:   http.StatusOK,
		},
		{
			name:    "missing header",
			method:  http.MethodGet,
			path:    "/v1/rooms",
			code:    http.StatusUnauthorized,
			message: "Missing authorization header",
		},
		{
			name:    "not a bearer header",
			method:  http.MethodGet,
			path:    "/v1/rooms",
			header:  "Token abc",
			code:    http.StatusUnauthorized,
			message: "Invalid authorization header format",
		},
		{
			name:   "expired token",
			method: http.MethodGet,
			path:   "/v1/rooms",
			header: "Bearer expired",
			setup: func(tokens *jwtMocks.MockJWT) {
				tokens.EXPECT().ValidateToken("expired", jwt.AccessToken).Return(nil, jwt.ErrExpiredToken)
			},
			code:    http.StatusUnauthorized,
			message: "Token has expired",
		},
		{
			name:   "token without identity",
			method: http.MethodGet,
			path:   "/v1/rooms",
			header: "Bearer anonymous",
			setup: func(tokens *jwtMocks.MockJWT) {
				tokens.EXPECT().ValidateToken("anonymous", jwt.AccessToken).Return(&jwt.Claims{Role: constant.RoleStaff}, nil)
			},
			code:    http.StatusUnauthorized,
			message: "Invalid token claims",
		},
		{
			name:   "staff lists rooms",
			method: http.MethodGet,
			path:   "/v1/rooms",
			header: "Bearer staff",
			setup: func(tokens *jwtMocks.MockJWT) {
				tokens.EXPECT().ValidateToken("staff", jwt.AccessToken).Return(&jwt.Claims{
					UserID: "staff-id",
					Email:  "staff@example.com",
					Role:   constant.RoleStaff,
				}, nil)
			},
			code:   http.StatusOK,
			caller: "staff-id",
		},
		{
			name:   "staff cannot create rooms",
			method: http.MethodPost,
			path:   "/v1/rooms",
			header: "Bearer staff",
			setup: func(tokens *jwtMocks.MockJWT) {
				tokens.EXPECT().ValidateToken("staff", jwt.AccessToken).Return(&jwt.Claims{
					UserID: "staff-id",
					Email:  "staff@example.com",
					Role:   constant.RoleStaff,
				}, nil)
			},
			code:    http.StatusForbidden,
			message: "You don't have the required permissions",
		},
		{
			name:   "admin deletes a room",
			method: http.MethodDelete,
			path:   "/v1/rooms/6f1c2d4e-8a7b-4c3d-9e2f-1a0b3c4d5e6f",
			header: "Bearer admin",
			setup: func(tokens *jwtMocks.MockJWT) {
				tokens.EXPECT().ValidateToken("admin", jwt.AccessToken).Return(&jwt.Claims{
					UserID: "admin-id",
					Email:  "admin@example.com",
					Role:   constant.RoleAdmin,
				}, nil)
			},
			code:   http.StatusOK,
			caller: "admin-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, tokens := newAuthRouter(t)
			if tt.setup != nil {
				tt.setup(tokens)
			}

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(constant.RequestHeaderAuthorization, tt.header)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)

			if tt.message != "" {
				assert.Equal(t, tt.message, errorMessage(t, rec))
			}

			if tt.caller != "" {
				assert.Equal(t, tt.caller, rec.Body.String())
			}
		})
	}
}

func TestAPIKey(t *testing.T) {
	t.Run("valid key bypasses token and role checks", func(t *testing.T) {
		router, _ := newAuthRouter(t)

		req := httptest.NewRequest(http.MethodPost, "/v1/rooms", nil)
		req.Header.Set(constant.RequestHeaderAPIKey, apiKey)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, middleware.APIActor, rec.Body.String())
	})

	t.Run("wrong key is forbidden", func(t *testing.T) {
		router, _ := newAuthRouter(t)

		req := httptest.NewRequest(http.MethodGet, "/v1/rooms", nil)
		req.Header.Set(constant.RequestHeaderAPIKey, "guess")

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
