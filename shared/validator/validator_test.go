package validator_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lodge/shared/failure"
	"lodge/shared/validator"
)

type stayRequest struct {
	RoomID   string  `json:"room_id"   validate:"required,uuid"`
	CheckIn  string  `json:"check_in"  validate:"required,datetime=2006-01-02"`
	CheckOut string  `json:"check_out" validate:"required,datetime=2006-01-02,dateafter=CheckIn"`
	Guests   int     `json:"guests"    validate:"gte=1,lte=10"`
	FeedURL  *string `json:"ical_url"  validate:"omitempty,ical_url"`
}

func validStay() stayRequest {
	return stayRequest{
		RoomID:   "6f1c2d4e-8a7b-4c3d-9e2f-1a0b3c4d5e6f",
		CheckIn:  "2026-03-01",
		CheckOut: "2026-03-04",
		Guests:   2,
	}
}

func strPtr(s string) *string {
	return &s
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*stayRequest)
		message string
	}{
		{
			name:   "valid stay",
			mutate: func(*stayRequest) {},
		},
		{
			name:    "missing room uses json name",
			mutate:  func(r *stayRequest) { r.RoomID = "" },
			message: "room_id is required",
		},
		{
			name:    "room is not a uuid",
			mutate:  func(r *stayRequest) { r.RoomID = "room-1" },
			message: "room_id must be a valid UUID",
		},
		{
			name:    "malformed date",
			mutate:  func(r *stayRequest) { r.CheckIn = "01/03/2026" },
			message: "check_in must be a date in the format 2006-01-02",
		},
		{
			name:    "check-out on check-in",
			mutate:  func(r *stayRequest) { r.CheckOut = r.CheckIn },
			message: "check_out must be after CheckIn",
		},
		{
			name:    "check-out before check-in",
			mutate:  func(r *stayRequest) { r.CheckOut = "2026-02-27" },
			message: "check_out must be after CheckIn",
		},
		{
			name:    "too many guests",
			mutate:  func(r *stayRequest) { r.Guests = 11 },
			message: "guests must be less than or equal to 10",
		},
		{
			name:   "webcal feed",
			mutate: func(r *stayRequest) { r.FeedURL = strPtr("webcal://admin.booking.com/hotel/ical/123.ics") },
		},
		{
			name:   "https feed",
			mutate: func(r *stayRequest) { r.FeedURL = strPtr("https://www.airbnb.com/calendar/ical/1.ics?s=abc") },
		},
		{
			name:    "ftp feed",
			mutate:  func(r *stayRequest) { r.FeedURL = strPtr("ftp://example.com/cal.ics") },
			message: "ical_url must be an http(s) or webcal URL",
		},
		{
			name:    "relative feed",
			mutate:  func(r *stayRequest) { r.FeedURL = strPtr("/calendar.ics") },
			message: "ical_url must be an http(s) or webcal URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validStay()
			tt.mutate(&req)

			err := validator.ValidateStruct(&req)
			if tt.message == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.message, err.Error())
			assert.Equal(t, http.StatusBadRequest, failure.GetCode(err))
		})
	}
}

func TestValidateVar(t *testing.T) {
	tests := []struct {
		name        string
		field       any
		tag         string
		expectError bool
	}{
		{name: "valid email", field: "front.desk@example.com", tag: "email"},
		{name: "invalid email", field: "front-desk", tag: "email", expectError: true},
		{name: "known role", field: "staff", tag: "oneof=admin staff"},
		{name: "unknown role", field: "guest", tag: "oneof=admin staff", expectError: true},
		{name: "empty passes empty", field: "", tag: "empty"},
		{name: "non-empty fails empty", field: "x", tag: "empty", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateVar(tt.field, tt.tag)
			if tt.expectError {
				assert.Error(t, err)

				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{
			name: "valid body",
			body: `{"room_id":"6f1c2d4e-8a7b-4c3d-9e2f-1a0b3c4d5e6f","check_in":"2026-03-01","check_out":"2026-03-02","guests":1}`,
		},
		{
			name:        "fails validation",
			body:        `{"room_id":"6f1c2d4e-8a7b-4c3d-9e2f-1a0b3c4d5e6f","check_in":"2026-03-02","check_out":"2026-03-01","guests":1}`,
			expectError: true,
		},
		{
			name:        "malformed json",
			body:        `{"room_id":}`,
			expectError: true,
		},
		{
			name:        "empty object",
			body:        `{}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req stayRequest

			err := validator.Validate(strings.NewReader(tt.body), &req)
			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, failure.GetCode(err))

				return
			}

			assert.NoError(t, err)
		})
	}
}
