package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"fmt"
	"strings"

	"lodge/infras/otel"
	"lodge/infras/postgres"
	"lodge/internal/domains/booking/model"
	"lodge/shared"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/logger"
	gRepo "lodge/shared/repository"
	"lodge/shared/timezone"

	"github.com/jmoiron/sqlx"
)

const (
	roomLockQuery = "SELECT pg_advisory_xact_lock(hashtext($1))"

	upsertExternalQuery = `INSERT INTO %s (%s) VALUES (%s)
ON CONFLICT (external_id) DO UPDATE SET
	room_id = EXCLUDED.room_id,
	guest_name = EXCLUDED.guest_name,
	check_in = EXCLUDED.check_in,
	check_out = EXCLUDED.check_out,
	status = CASE WHEN bookings.status = 'cancelled' THEN bookings.status ELSE EXCLUDED.status END,
	raw_data = EXCLUDED.raw_data,
	modified_at = EXCLUDED.modified_at,
	modified_by = EXCLUDED.modified_by
RETURNING (xmax = 0) AS inserted, status`
)

type Booking interface {
	Get(ctx context.Context, filter gDto.FilterGroup) (model.BookingDetail, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) ([]model.BookingDetail, error)
	Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	Delete(ctx context.Context, filter gDto.FilterGroup) error

	// WithinRoomLock runs fn in a write transaction holding the room's advisory lock.
	// Every scan-then-write on a room goes through here.
	WithinRoomLock(ctx context.Context, roomID string, fn func(tx *sqlx.Tx) error) error
	GetTx(ctx context.Context, tx *sqlx.Tx, id string) (model.Booking, error)
	// FindOverlapping reads from the replica without locking; its answer is advisory only.
	FindOverlapping(ctx context.Context, roomID string, span model.DateRange, excludeID string) ([]model.Booking, error)
	FindOverlappingTx(ctx context.Context, tx *sqlx.Tx, roomID string, span model.DateRange, excludeID string) ([]model.Booking, error)
	InsertTx(ctx context.Context, tx *sqlx.Tx, booking model.Booking) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, fields map[string]any, id string) error
	UpsertExternalTx(ctx context.Context, tx *sqlx.Tx, booking model.Booking) (model.UpsertOutcome, error)
	UnlinkGuestTx(ctx context.Context, tx *sqlx.Tx, guestID string, user string) error
}

var overlapParams = gDto.QueryParams{SortBy: model.FieldCheckIn, SortDir: gDto.SortDirAsc}

type repositoryImpl struct {
	bookings gRepo.Repository[model.Booking]
	details  gRepo.Repository[model.BookingDetail]
	otel     otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Booking {
	return &repositoryImpl{
		bookings: gRepo.NewRepository[model.Booking](model.EntityName, model.TableName, model.FieldID, db, otel),
		details:  gRepo.NewRepository[model.BookingDetail](model.EntityName, model.TableName, model.FieldID, db, otel),
		otel:     otel,
	}
}

func (r *repositoryImpl) Get(ctx context.Context, filter gDto.FilterGroup) (model.BookingDetail, error) {
	return r.details.Get(ctx, filter)
}

func (r *repositoryImpl) GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup) ([]model.BookingDetail, error) {
	return r.details.GetAll(ctx, params, filter)
}

func (r *repositoryImpl) Exist(ctx context.Context, filter gDto.FilterGroup) (bool, error) {
	return r.bookings.Exist(ctx, filter)
}

func (r *repositoryImpl) Count(ctx context.Context, filter gDto.FilterGroup) (int, error) {
	return r.details.Count(ctx, filter)
}

func (r *repositoryImpl) Delete(ctx context.Context, filter gDto.FilterGroup) error {
	return r.bookings.Delete(ctx, filter)
}

func (r *repositoryImpl) WithinRoomLock(ctx context.Context, roomID string, fn func(tx *sqlx.Tx) error) error {
	return r.bookings.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, roomLockQuery, roomID); err != nil {
			logger.ErrorWithStack(err)

			return fmt.Errorf("failed to lock room %s: %w", roomID, err)
		}

		return fn(tx)
	})
}

func (r *repositoryImpl) GetTx(ctx context.Context, tx *sqlx.Tx, id string) (model.Booking, error) {
	return r.bookings.GetTx(ctx, tx, shared.FilterByID(id, model.FieldID, model.TableName))
}

func (r *repositoryImpl) FindOverlapping(ctx context.Context, roomID string, span model.DateRange, excludeID string) ([]model.Booking, error) {
	return r.bookings.GetAll(ctx, overlapParams, OverlapFilter(roomID, span, excludeID))
}

// FindOverlappingTx returns the non-cancelled bookings of a room whose span overlaps span, oldest check-in first.
func (r *repositoryImpl) FindOverlappingTx(ctx context.Context, tx *sqlx.Tx, roomID string, span model.DateRange, excludeID string) ([]model.Booking, error) {
	return r.bookings.GetAllTx(ctx, tx, overlapParams, OverlapFilter(roomID, span, excludeID))
}

func (r *repositoryImpl) InsertTx(ctx context.Context, tx *sqlx.Tx, booking model.Booking) error {
	return translate(r.bookings.InsertTx(ctx, tx, booking))
}

func (r *repositoryImpl) UpdateTx(ctx context.Context, tx *sqlx.Tx, fields map[string]any, id string) error {
	return translate(r.bookings.UpdateTx(ctx, tx, fields, shared.FilterByID(id, model.FieldID, model.TableName)))
}

// UpsertExternalTx inserts an external booking or refreshes the row that already carries its external id.
// A cancelled row stays cancelled, so the outcome carries the status actually stored.
func (r *repositoryImpl) UpsertExternalTx(ctx context.Context, tx *sqlx.Tx, booking model.Booking) (outcome model.UpsertOutcome, err error) {
	ctx, scope := r.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".booking.UpsertExternalTx")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	columns := r.bookings.InsertColumns
	values := make([]string, len(columns))

	for i, col := range columns {
		values[i] = ":" + col
	}

	query := fmt.Sprintf(upsertExternalQuery, model.TableName, strings.Join(columns, ", "), strings.Join(values, ", "))
	scope.SetAttribute(constant.OtelQueryAttributeKey, query)

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		logger.ErrorWithStack(err)

		return outcome, fmt.Errorf("failed to prepare upsert (%s): %w", model.EntityName, err)
	}
	defer stmt.Close()

	if err = stmt.GetContext(ctx, &outcome, booking); err != nil {
		logger.ErrorWithStack(err)

		return outcome, translate(fmt.Errorf("failed to upsert external booking: %w", err))
	}

	return outcome, nil
}

// UnlinkGuestTx clears the guest reference of every booking of a guest. The bookings keep their guest_name.
func (r *repositoryImpl) UnlinkGuestTx(ctx context.Context, tx *sqlx.Tx, guestID string, user string) error {
	fields := map[string]any{
		model.FieldGuestID:       nil,
		constant.FieldModifiedAt: timezone.Now(),
		constant.FieldModifiedBy: user,
	}

	filter := gDto.FilterGroup{
		Filters: []any{
			gDto.Filter{ArgName: "linked_guest_id", Field: model.FieldGuestID, Value: guestID, Operator: gDto.FilterOperatorEq, Table: model.TableName},
		},
	}

	return r.bookings.UpdateTx(ctx, tx, fields, filter)
}

// OverlapFilter selects the bookings that block span on a room: [a,b) and [c,d) overlap iff a < d and c < b.
func OverlapFilter(roomID string, span model.DateRange, excludeID string) gDto.FilterGroup {
	filters := []any{
		gDto.Filter{Field: model.FieldRoomID, Value: roomID, Operator: gDto.FilterOperatorEq, Table: model.TableName},
		gDto.Filter{Field: model.FieldStatus, Value: model.StatusCancelled, Operator: gDto.FilterOperatorNotEq, Table: model.TableName},
		gDto.Filter{ArgName: "span_end", Field: model.FieldCheckIn, Value: timezone.FormatDate(span.End), Operator: gDto.FilterOperatorLess, Table: model.TableName},
		gDto.Filter{ArgName: "span_start", Field: model.FieldCheckOut, Value: timezone.FormatDate(span.Start), Operator: gDto.FilterOperatorGreater, Table: model.TableName},
	}

	if excludeID != "" {
		filters = append(filters, gDto.Filter{ArgName: "exclude_id", Field: model.FieldID, Value: excludeID, Operator: gDto.FilterOperatorNotEq, Table: model.TableName})
	}

	return gDto.FilterGroup{Filters: filters}
}

// CheckInRangeFilter selects bookings whose check-in falls within [start, end], both inclusive.
func CheckInRangeFilter(start, end string) gDto.FilterGroup {
	return gDto.FilterGroup{
		Filters: []any{
			gDto.Filter{ArgName: "range_start", Field: model.FieldCheckIn, Value: start, Operator: gDto.FilterOperatorGreaterEq, Table: model.TableName},
			gDto.Filter{ArgName: "range_end", Field: model.FieldCheckIn, Value: end, Operator: gDto.FilterOperatorLessEq, Table: model.TableName},
		},
	}
}

// GuestFilter selects every booking linked to a guest.
func GuestFilter(guestID string) gDto.FilterGroup {
	return gDto.FilterGroup{
		Filters: []any{
			gDto.Filter{Field: model.FieldGuestID, Value: guestID, Operator: gDto.FilterOperatorEq, Table: model.TableName},
		},
	}
}

// translate maps constraint violations raised by the store onto user-facing failures.
func translate(err error) error {
	if err == nil {
		return nil
	}

	switch postgres.ErrorCode(err) {
	case constant.PqErrorCodeExclusionViolation:
		return failure.Conflict("date conflict: the room is already booked for these dates") // nolint:wrapcheck
	case constant.PqErrorCodeUniqueViolation:
		return failure.Conflict("a booking with this external id already exists") // nolint:wrapcheck
	case constant.PqErrorCodeCheckViolation:
		return failure.BadRequestFromString("check_out must be after check_in") // nolint:wrapcheck
	case constant.PqErrorCodeFkViolation:
		return failure.BadRequestFromString("room or guest does not exist") // nolint:wrapcheck
	}

	return err
}
