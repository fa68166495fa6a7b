package ical_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"lodge/config"
	"lodge/infras/ical"
	otelMocks "lodge/infras/otel/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedBody = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Booking.com//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:all-day-1@booking.com\r\n" +
	"DTSTART;VALUE=DATE:20250702\r\n" +
	"DTEND;VALUE=DATE:20250704\r\n" +
	"SUMMARY:CLOSED - Not available\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:timed-1@booking.com\r\n" +
	"DTSTART:20250801T140000Z\r\n" +
	"DTEND:20250803T100000Z\r\n" +
	"SUMMARY:Reserved\r\n" +
	"DESCRIPTION:Guest arrives late\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:no-end@booking.com\r\n" +
	"DTSTART;VALUE=DATE:20250901\r\n" +
	"SUMMARY:Open ended\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:inverted@booking.com\r\n" +
	"DTSTART;VALUE=DATE:20250910\r\n" +
	"DTEND;VALUE=DATE:20250910\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:cancelled@booking.com\r\n" +
	"DTSTART;VALUE=DATE:20250705\r\n" +
	"DTEND;VALUE=DATE:20250707\r\n" +
	"STATUS:CANCELLED\r\n" +
	"SUMMARY:Reserved\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:transparent@booking.com\r\n" +
	"DTSTART;VALUE=DATE:20250710\r\n" +
	"DTEND;VALUE=DATE:20250712\r\n" +
	"TRANSP:TRANSPARENT\r\n" +
	"SUMMARY:Owner note\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:duration@booking.com\r\n" +
	"DTSTART;VALUE=DATE:20250715\r\n" +
	"DURATION:P2D\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VTODO\r\n" +
	"UID:todo-1\r\n" +
	"SUMMARY:Clean room\r\n" +
	"END:VTODO\r\n" +
	"END:VCALENDAR\r\n"

func date(t *testing.T, value string) time.Time {
	t.Helper()

	d, err := time.Parse(time.DateOnly, value)
	require.NoError(t, err)

	return d
}

func newClient(maxFailures uint32) ical.Client {
	cfg := &config.Config{}
	cfg.Sync.FeedTimeoutSeconds = 2
	cfg.Sync.BreakerMaxFailures = maxFailures
	cfg.Sync.BreakerOpenSeconds = 60

	return ical.New(cfg, otelMocks.NewOtel())
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(feedBody))
	}))
	defer server.Close()

	feed, err := newClient(3).Fetch(context.Background(), server.URL+"/room-1.ics")
	require.NoError(t, err)
	assert.Equal(t, feedBody, string(feed.Raw))

	events := slices.Collect(feed.Events())
	require.Len(t, events, 2)

	assert.Equal(t, "all-day-1@booking.com", events[0].ExternalID)
	assert.Equal(t, "CLOSED - Not available", events[0].Summary)
	assert.Equal(t, date(t, "2025-07-02"), events[0].Start)
	assert.Equal(t, date(t, "2025-07-04"), events[0].End)
	assert.Contains(t, string(events[0].Raw), `"uid":"all-day-1@booking.com"`)

	assert.Equal(t, "timed-1@booking.com", events[1].ExternalID)
	assert.Equal(t, "Guest arrives late", events[1].Description)
	assert.Equal(t, date(t, "2025-08-01"), events[1].Start)
	assert.Equal(t, date(t, "2025-08-03"), events[1].End)
}

func TestFeed_EventsSkipsNonBlockingEntries(t *testing.T) {
	feed, err := ical.Parse("https://example.test/feed.ics", []byte(feedBody))
	require.NoError(t, err)

	var ids []string
	for event := range feed.Events() {
		ids = append(ids, event.ExternalID)
	}

	assert.Equal(t, []string{"all-day-1@booking.com", "timed-1@booking.com"}, ids)
	assert.NotContains(t, ids, "cancelled@booking.com")
	assert.NotContains(t, ids, "transparent@booking.com")
	assert.NotContains(t, ids, "duration@booking.com")
}

func TestFeed_EventsStopsEarly(t *testing.T) {
	feed, err := ical.Parse("https://example.test/feed.ics", []byte(feedBody))
	require.NoError(t, err)

	seen := 0
	for range feed.Events() {
		seen++

		break
	}

	assert.Equal(t, 1, seen)
}

func TestClient_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "not found", status: http.StatusNotFound, wantStatus: http.StatusNotFound},
		{name: "server error", status: http.StatusBadGateway, wantStatus: http.StatusBadGateway},
		{name: "not a calendar", status: http.StatusOK, body: "<html>maintenance</html>"},
		{name: "empty body", status: http.StatusOK, body: "  \r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(3).Fetch(context.Background(), server.URL)
			require.Error(t, err)

			var fetchErr *ical.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.wantStatus, fetchErr.StatusCode)
		})
	}
}

func TestClient_Fetch_SizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	}))
	defer server.Close()

	limited := func(maxBytes int64) ical.Client {
		cfg := &config.Config{}
		cfg.Sync.FeedTimeoutSeconds = 2
		cfg.Sync.BreakerMaxFailures = 3
		cfg.Sync.MaxFeedBytes = maxBytes

		return ical.New(cfg, otelMocks.NewOtel())
	}

	t.Run("feed at the limit", func(t *testing.T) {
		feed, err := limited(int64(len(feedBody))).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Len(t, feed.Raw, len(feedBody))
	})

	t.Run("feed over the limit", func(t *testing.T) {
		_, err := limited(int64(len(feedBody))-1).Fetch(context.Background(), server.URL)

		var fetchErr *ical.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.ErrorIs(t, err, ical.ErrFeedTooLarge)
	})
}

func TestClient_Fetch_BadURL(t *testing.T) {
	_, err := newClient(3).Fetch(context.Background(), "ftp://example.test/feed.ics")

	var fetchErr *ical.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, ical.ErrBadScheme)
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	feedURL := server.URL
	server.Close()

	_, err := newClient(3).Fetch(context.Background(), feedURL)

	var fetchErr *ical.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
}

func TestClient_Fetch_BreakerOpensPerHost(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newClient(2)

	for range 2 {
		_, err := client.Fetch(context.Background(), server.URL)
		require.Error(t, err)
	}

	_, err := client.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "circuit breaker is open"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Fetch_NotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newClient(1)

	for range 3 {
		_, err := client.Fetch(context.Background(), server.URL)
		require.Error(t, err)
	}

	assert.Equal(t, int32(3), calls.Load())
}
