package mocks

import (
	"context"
	"sync"

	"lodge/infras/otel"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Otel hands out recording scopes. Scopes keeps every scope opened, in order.
type Otel struct {
	mu     sync.Mutex
	Scopes []*Scope
}

func (o *Otel) NewScope(ctx context.Context, _, spanName string) (context.Context, otel.Scope) {
	scope := &Scope{Name: spanName}

	o.mu.Lock()
	o.Scopes = append(o.Scopes, scope)
	o.mu.Unlock()

	return ctx, scope
}

// Scope returns the first scope opened with spanName, or nil.
func (o *Otel) Scope(spanName string) *Scope {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, scope := range o.Scopes {
		if scope.Name == spanName {
			return scope
		}
	}

	return nil
}

func (o *Otel) Meter(name string) metric.Meter {
	return noop.NewMeterProvider().Meter(name)
}

func (o *Otel) Shutdown(_ context.Context) error {
	return nil
}

func NewOtel() otel.Otel {
	return &Otel{}
}

// NewRecordingOtel is NewOtel with its concrete type, for tests that inspect scopes.
func NewRecordingOtel() *Otel {
	return &Otel{}
}
