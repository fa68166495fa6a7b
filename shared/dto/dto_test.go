package dto_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lodge/shared/constant"
	"lodge/shared/dto"
	"lodge/shared/model"
	"lodge/shared/timezone"
)

func TestMetadata_FromModel(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("created and modified", func(t *testing.T) {
		modifiedAt := createdAt.Add(24 * time.Hour)

		metadata := dto.Metadata{}
		metadata.FromModel(model.Metadata{
			CreatedAt:  createdAt,
			ModifiedAt: modifiedAt,
			CreatedBy:  "admin-id",
			ModifiedBy: "system:sync",
		})

		assert.Equal(t, dto.Metadata{
			CreatedAt:  timezone.Format(createdAt, constant.DateFormat),
			CreatedBy:  "admin-id",
			ModifiedAt: timezone.Format(modifiedAt, constant.DateFormat),
			ModifiedBy: "system:sync",
		}, metadata)
	})

	t.Run("never modified", func(t *testing.T) {
		metadata := dto.Metadata{}
		metadata.FromModel(model.Metadata{CreatedAt: createdAt, CreatedBy: "admin-id"})

		assert.NotEmpty(t, metadata.CreatedAt)
		assert.Empty(t, metadata.ModifiedAt)
		assert.Empty(t, metadata.ModifiedBy)
	})
}

func TestQueryParams_FromRequest(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		defaultRequest bool
		expected       dto.QueryParams
	}{
		{
			name:     "all parameters",
			query:    "page=2&limit=20&sort_by=name&sort_dir=asc",
			expected: dto.QueryParams{Page: 2, Limit: 20, SortBy: "name", SortDir: "ASC"},
		},
		{
			name:           "defaults when empty",
			defaultRequest: true,
			expected:       dto.QueryParams{Page: constant.DefaultValuePage, Limit: constant.DefaultValueLimit},
		},
		{
			name:     "no defaults when disabled",
			expected: dto.QueryParams{},
		},
		{
			name:           "invalid and negative values fall back",
			query:          "page=-1&limit=abc",
			defaultRequest: true,
			expected:       dto.QueryParams{Page: constant.DefaultValuePage, Limit: constant.DefaultValueLimit},
		},
		{
			name:           "unknown sort direction is ignored",
			query:          "sort_by=capacity&sort_dir=sideways",
			defaultRequest: true,
			expected:       dto.QueryParams{Page: constant.DefaultValuePage, Limit: constant.DefaultValueLimit, SortBy: "capacity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/rooms?"+tt.query, nil)

			params := dto.QueryParams{}
			params.FromRequest(req, tt.defaultRequest)

			assert.Equal(t, tt.expected, params)
		})
	}
}

func TestQueryParams_Sanitize(t *testing.T) {
	allowed := []string{"rooms.name", "rooms.capacity"}

	tests := []struct {
		name     string
		params   dto.QueryParams
		expected dto.QueryParams
	}{
		{
			name:     "allowed column kept",
			params:   dto.QueryParams{SortBy: "rooms.capacity", SortDir: dto.SortDirDesc},
			expected: dto.QueryParams{SortBy: "rooms.capacity", SortDir: dto.SortDirDesc},
		},
		{
			name:     "injection replaced by default",
			params:   dto.QueryParams{SortBy: "name; DROP TABLE rooms"},
			expected: dto.QueryParams{SortBy: "rooms.name", SortDir: dto.SortDirAsc},
		},
		{
			name:     "unqualified column replaced",
			params:   dto.QueryParams{SortBy: "capacity", SortDir: dto.SortDirDesc},
			expected: dto.QueryParams{SortBy: "rooms.name", SortDir: dto.SortDirDesc},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.Sanitize(allowed, "rooms.name", dto.SortDirAsc)

			assert.Equal(t, tt.expected, tt.params)
		})
	}
}

func TestFilter_GetWhereClause(t *testing.T) {
	tests := []struct {
		name   string
		filter dto.Filter
		where  string
		args   map[string]any
	}{
		{
			name:   "eq with table",
			filter: dto.Filter{Field: "room_id", Value: "r-1", Operator: dto.FilterOperatorEq, Table: "bookings"},
			where:  "bookings.room_id = :room_id",
			args:   map[string]any{"room_id": "r-1"},
		},
		{
			name:   "ilike wraps the value",
			filter: dto.Filter{Field: "name", Value: "deluxe", Operator: dto.FilterOperatorILike, Table: "rooms"},
			where:  "rooms.name ILIKE :name",
			args:   map[string]any{"name": "%deluxe%"},
		},
		{
			name:   "arg name overrides field",
			filter: dto.Filter{ArgName: "span_end", Field: "check_in", Value: "2026-03-04", Operator: dto.FilterOperatorLess},
			where:  "check_in < :span_end",
			args:   map[string]any{"span_end": "2026-03-04"},
		},
		{
			name:   "in expands a slice",
			filter: dto.Filter{Field: "status", Value: []string{"confirmed", "conflict"}, Operator: dto.FilterOperatorIn},
			where:  "status IN (:status_0, :status_1) ",
			args:   map[string]any{"status_0": "confirmed", "status_1": "conflict"},
		},
		{
			name:   "is null",
			filter: dto.Filter{Field: "ical_url", Operator: dto.FilterIsNull, Table: "rooms"},
			where:  "rooms.ical_url IS NULL",
			args:   map[string]any{},
		},
		{
			name:   "unknown operator",
			filter: dto.Filter{Field: "name", Value: "x", Operator: "regex"},
			where:  "",
			args:   map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := tt.filter.GetWhereClause()

			assert.Equal(t, tt.where, where)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestFilterGroup_GetWhereClause(t *testing.T) {
	group := dto.FilterGroup{
		Filters: []any{
			dto.Filter{Field: "room_id", Value: "r-1", Operator: dto.FilterOperatorEq},
			dto.FilterGroup{
				Operator: dto.FilterGroupOperatorOr,
				Filters: []any{
					dto.Filter{Field: "status", Value: "confirmed", Operator: dto.FilterOperatorEq},
					dto.Filter{ArgName: "status_conflict", Field: "status", Value: "conflict", Operator: dto.FilterOperatorEq},
				},
			},
			dto.Filter{Field: "ignored", Operator: "regex"},
		},
	}

	where, args := group.GetWhereClause()

	assert.Equal(t, "(room_id = :room_id AND (status = :status OR status = :status_conflict))", where)
	assert.Equal(t, map[string]any{"room_id": "r-1", "status": "confirmed", "status_conflict": "conflict"}, args)

	empty := dto.FilterGroup{}
	where, args = empty.GetWhereClause()

	assert.Empty(t, where)
	assert.Empty(t, args)
}
