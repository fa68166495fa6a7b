package ical

//go:generate go run go.uber.org/mock/mockgen -source=./ical.go -destination=./mocks/ical_mock.go -package=mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"lodge/config"
	"lodge/infras/otel"
	"lodge/shared/constant"
	"lodge/shared/timezone"

	ics "github.com/arran4/golang-ical"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	defaultMaxFeedBytes = 10 << 20
	allDayValueLength  = len("20060102")
	otelAttrFeedHost   = "feed.host"
	otelAttrFeedStatus = "feed.status"
	otelAttrFeedBytes  = "feed.bytes"
)

var (
	ErrEmptyFeed    = errors.New("feed is empty")
	ErrBadScheme    = errors.New("feed url must be http, https or webcal")
	ErrFeedTooLarge = errors.New("feed is too large")
)

// reasons a calendar entry is not a reservation block
var (
	errNoUID        = errors.New("entry has no uid")
	errNotBlocking  = errors.New("entry is cancelled or does not block time")
	errNoDateSpan   = errors.New("entry has no usable date span")
	errDurationSpan = errors.New("entry uses DURATION instead of DTEND")
)

// FetchError reports a feed that could not be fetched or parsed. It is scoped to a single room.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch feed %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Event is one reservation block of a feed. Start and End are calendar dates at UTC midnight; End is exclusive.
type Event struct {
	ExternalID  string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Raw         json.RawMessage
}

type rawEvent struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	DTStart     string `json:"dtstart"`
	DTEnd       string `json:"dtend"`
}

// Feed is a parsed calendar. Events are normalised lazily while the caller ranges over them.
type Feed struct {
	URL      string
	Raw      []byte
	calendar *ics.Calendar
}

// Parse decodes a calendar payload.
func Parse(feedURL string, raw []byte) (*Feed, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &FetchError{URL: feedURL, Err: ErrEmptyFeed}
	}

	calendar, err := ics.ParseCalendar(bytes.NewReader(raw))
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: fmt.Errorf("parse calendar: %w", err)}
	}

	return &Feed{URL: feedURL, Raw: raw, calendar: calendar}, nil
}

// Events yields the VEVENT blocks that carry a uid and a non-empty date span, in feed order.
// Cancelled and transparent entries hold no room and are skipped.
func (f *Feed) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, vevent := range f.calendar.Events() {
			event, err := normalize(vevent)
			if err != nil {
				skipped(f.URL, vevent.Id(), err)

				continue
			}

			if !yield(event) {
				return
			}
		}
	}
}

func skipped(feedURL, uid string, reason error) {
	entry := log.Debug()
	if errors.Is(reason, errDurationSpan) {
		entry = log.Warn()
	}

	entry.Str("url", feedURL).Str("uid", uid).Str("reason", reason.Error()).Msg("skipping calendar entry")
}

func normalize(vevent *ics.VEvent) (Event, error) {
	uid := vevent.Id()
	if uid == "" {
		return Event{}, errNoUID
	}

	if !blocksTime(vevent) {
		return Event{}, errNotBlocking
	}

	start, ok := eventDate(vevent, ics.ComponentPropertyDtStart)
	if !ok {
		return Event{}, errNoDateSpan
	}

	end, ok := eventDate(vevent, ics.ComponentPropertyDtEnd)
	if !ok && vevent.GetProperty(ics.ComponentPropertyDuration) != nil {
		return Event{}, errDurationSpan
	}

	if !ok || !start.Before(end) {
		return Event{}, errNoDateSpan
	}

	event := Event{
		ExternalID:  uid,
		Summary:     propertyText(vevent, ics.ComponentPropertySummary),
		Description: propertyText(vevent, ics.ComponentPropertyDescription),
		Start:       start,
		End:         end,
	}

	raw, err := json.Marshal(rawEvent{
		UID:         uid,
		Summary:     event.Summary,
		Description: event.Description,
		Status:      propertyText(vevent, ics.ComponentPropertyStatus),
		Start:       timezone.FormatDate(start),
		End:         timezone.FormatDate(end),
		DTStart:     propertyText(vevent, ics.ComponentPropertyDtStart),
		DTEnd:       propertyText(vevent, ics.ComponentPropertyDtEnd),
	})
	if err == nil {
		event.Raw = raw
	}

	return event, nil
}

func blocksTime(vevent *ics.VEvent) bool {
	if strings.EqualFold(propertyText(vevent, ics.ComponentPropertyStatus), string(ics.ObjectStatusCancelled)) {
		return false
	}

	return !strings.EqualFold(propertyText(vevent, ics.ComponentPropertyTransp), string(ics.TransparencyTransparent))
}

// eventDate reads a DTSTART/DTEND property as a calendar date. All-day values keep their written date;
// timestamps are converted to the application timezone first.
func eventDate(vevent *ics.VEvent, property ics.ComponentProperty) (time.Time, bool) {
	prop := vevent.GetProperty(property)
	if prop == nil {
		return time.Time{}, false
	}

	var (
		value time.Time
		err   error
	)

	if property == ics.ComponentPropertyDtStart {
		value, err = vevent.GetStartAt()
	} else {
		value, err = vevent.GetEndAt()
	}

	if err != nil {
		return time.Time{}, false
	}

	if isAllDay(prop) {
		return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC), true
	}

	return timezone.Date(value), true
}

func isAllDay(prop *ics.IANAProperty) bool {
	if slices.Contains(prop.ICalParameters[string(ics.ParameterValue)], "DATE") {
		return true
	}

	return len(strings.TrimSpace(prop.Value)) == allDayValueLength
}

func propertyText(vevent *ics.VEvent, property ics.ComponentProperty) string {
	prop := vevent.GetProperty(property)
	if prop == nil {
		return constant.Empty
	}

	return ics.FromText(prop.Value)
}

type Client interface {
	Fetch(ctx context.Context, feedURL string) (*Feed, error)
}

type clientImpl struct {
	http     *http.Client
	otel     otel.Otel
	settings gobreaker.Settings
	maxBytes int64

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a feed client with a per-request timeout and one circuit breaker per feed host.
func New(config *config.Config, otel otel.Otel) Client {
	return NewWithHTTPClient(config, otel, &http.Client{
		Timeout: time.Duration(config.Sync.FeedTimeoutSeconds) * time.Second,
	})
}

func NewWithHTTPClient(config *config.Config, otel otel.Otel, httpClient *http.Client) Client {
	maxFailures := max(config.Sync.BreakerMaxFailures, 1)

	maxBytes := config.Sync.MaxFeedBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxFeedBytes
	}

	return &clientImpl{
		http:     httpClient,
		otel:     otel,
		maxBytes: maxBytes,
		settings: gobreaker.Settings{
			MaxRequests: 1,
			Timeout:     time.Duration(config.Sync.BreakerOpenSeconds) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Warn().Str("host", name).Str("from", from.String()).Str("to", to.String()).Msg("feed circuit breaker changed state")
			},
			// a 4xx means the feed url is wrong, not that the host is down
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}

				var fetchErr *FetchError

				return errors.As(err, &fetchErr) && fetchErr.StatusCode >= 400 && fetchErr.StatusCode < 500
			},
		},
		breakers: map[string]*gobreaker.CircuitBreaker{},
	}
}

func (c *clientImpl) breaker(host string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.breakers[host]
	if !ok {
		settings := c.settings
		settings.Name = host
		cb = gobreaker.NewCircuitBreaker(settings)
		c.breakers[host] = cb
	}

	return cb
}

// Fetch downloads and parses a feed. Every failure is returned as *FetchError.
func (c *clientImpl) Fetch(ctx context.Context, feedURL string) (feed *Feed, err error) {
	ctx, scope := c.otel.NewScope(ctx, constant.OtelFeedScopeName, constant.OtelFeedScopeName+".Fetch")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	target, err := normalizeURL(feedURL)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	scope.SetAttribute(otelAttrFeedHost, target.Host)

	result, err := c.breaker(target.Host).Execute(func() (any, error) {
		return c.download(ctx, target.String())
	})
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return nil, fetchErr
		}

		return nil, &FetchError{URL: feedURL, Err: err}
	}

	raw, _ := result.([]byte)
	scope.SetAttribute(otelAttrFeedBytes, len(raw))

	if int64(len(raw)) > c.maxBytes {
		return nil, &FetchError{URL: feedURL, StatusCode: http.StatusOK, Err: fmt.Errorf("%w: over %d bytes", ErrFeedTooLarge, c.maxBytes)}
	}

	return Parse(feedURL, raw)
}

func (c *clientImpl) download(ctx context.Context, feedURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	request.Header.Set(constant.RequestHeaderAccept, constant.ContentTypeCalendar)

	response, err := c.http.Do(request)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: feedURL, StatusCode: response.StatusCode, Err: errors.New(http.StatusText(response.StatusCode))}
	}

	// one byte past the limit tells an oversized feed from one that fits exactly
	raw, err := io.ReadAll(io.LimitReader(response.Body, c.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: feedURL, StatusCode: response.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	return raw, nil
}

func normalizeURL(feedURL string) (*url.URL, error) {
	target, err := url.Parse(strings.TrimSpace(feedURL))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	switch strings.ToLower(target.Scheme) {
	case "http", "https":
	case "webcal":
		target.Scheme = "https"
	default:
		return nil, ErrBadScheme
	}

	if target.Host == "" {
		return nil, ErrBadScheme
	}

	return target, nil
}
