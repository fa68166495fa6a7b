package service

import (
	"context"
	"errors"
	"fmt"

	"lodge/config"
	"lodge/infras/kafka"
	"lodge/infras/otel"
	"lodge/internal/domains/booking/model"
	"lodge/internal/domains/booking/model/dto"
	"lodge/internal/domains/booking/repository"
	gstDto "lodge/internal/domains/guest/model/dto"
	guestRepo "lodge/internal/domains/guest/repository"
	"lodge/shared"
	"lodge/shared/cache"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/timezone"
	"lodge/shared/validator"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const (
	cacheGetBooking = "booking:get"

	// CacheListBooking prefixes the cached date-range listings. Anything that writes bookings must clear it.
	CacheListBooking = "booking:list"

	conflictMessage = "date conflict: the room is already booked for these dates"
)

var errRoomMoved = errors.New("booking was moved to another room while being updated")

type Booking interface {
	Create(ctx context.Context, req dto.CreateBookingRequest) (dto.BookingResponse, error)
	Get(ctx context.Context, id string) (dto.BookingResponse, error)
	List(ctx context.Context, req dto.ListBookingsRequest) ([]dto.BookingResponse, error)
	Update(ctx context.Context, req dto.UpdateBookingRequest, id string) (dto.BookingResponse, error)
	Cancel(ctx context.Context, id string) (dto.BookingResponse, error)
	Delete(ctx context.Context, id string) error

	// CheckAvailability returns the bookings that would block span on a room, ignoring excludeID.
	CheckAvailability(ctx context.Context, roomID string, span model.DateRange, excludeID string) ([]model.Booking, error)
}

type serviceImpl struct {
	repo   repository.Booking
	guests guestRepo.Guest
	cfg    *config.Config
	cache  cache.RedisCache
	kafka  kafka.Client
	otel   otel.Otel
}

func New(repo repository.Booking, guests guestRepo.Guest, cfg *config.Config, cache cache.RedisCache, kafka kafka.Client, otel otel.Otel) Booking {
	return &serviceImpl{
		repo:   repo,
		guests: guests,
		cfg:    cfg,
		cache:  cache,
		kafka:  kafka,
		otel:   otel,
	}
}

func (s *serviceImpl) Create(ctx context.Context, req dto.CreateBookingRequest) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Booking.Create")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	span, err := req.Span()
	if err != nil || !span.Valid() {
		return res, failure.BadRequestFromString("check_out must be after check_in") // nolint:wrapcheck
	}

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	var booking model.Booking

	err = s.repo.WithinRoomLock(ctx, req.RoomID, func(tx *sqlx.Tx) error {
		if err := s.ensureAvailable(ctx, tx, req.RoomID, span, constant.Empty); err != nil {
			return err
		}

		guestID, guestName, err := s.resolveGuest(ctx, tx, user, req.GuestID, req.GuestName, req.GuestPhone)
		if err != nil {
			return err
		}

		booking = req.ToModel(user, guestID, guestName, span)

		if err := s.repo.InsertTx(ctx, tx, booking); err != nil {
			return err
		}

		if guestID != nil {
			return s.guests.IncrementVisitTx(ctx, tx, *guestID)
		}

		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("room_id", req.RoomID).Str("check_in", req.CheckIn).Str("check_out", req.CheckOut).Msg("failed to create booking")

		return res, wrap("failed to create booking", err)
	}

	s.afterWrite(ctx, dto.EventBookingCreated, booking, user)

	res.FromModel(booking)

	return res, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Booking.Get")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	cacheKey := shared.BuildCacheKey(cacheGetBooking, id)

	if err = s.cache.Get(ctx, cacheKey, &res); err == nil {
		return res, nil
	}

	detail, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		log.Error().Err(err).Str("booking_id", id).Msg("failed to get booking")

		return res, fmt.Errorf("failed to get booking: %w", err)
	}

	if detail.ID == constant.Empty {
		return res, failure.NotFound("booking not found") // nolint:wrapcheck
	}

	res.FromDetail(detail)

	if err := s.cache.Save(ctx, cacheKey, res, s.cfg.Cache.TTL); err != nil {
		log.Error().Err(err).Msg("failed to save booking to cache")
	}

	return res, nil
}

// List returns the bookings whose check-in falls within [start_date, end_date], joined with room and guest.
func (s *serviceImpl) List(ctx context.Context, req dto.ListBookingsRequest) (res []dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Booking.List")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	if err = validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

	if req.EndDate < req.StartDate {
		return nil, failure.BadRequestFromString("end_date must not be before start_date") // nolint:wrapcheck
	}

	cacheKey := shared.BuildCacheKey(CacheListBooking, req.StartDate, req.EndDate)

	if err = s.cache.Get(ctx, cacheKey, &res); err == nil {
		log.Debug().Str("cacheKey", cacheKey).Msg("cache hit for bookings")

		return res, nil
	}

	params := gDto.QueryParams{SortBy: model.TableName + "." + model.FieldCheckIn, SortDir: gDto.SortDirAsc}

	details, err := s.repo.GetAll(ctx, params, repository.CheckInRangeFilter(req.StartDate, req.EndDate))
	if err != nil {
		log.Error().Err(err).Str("start_date", req.StartDate).Str("end_date", req.EndDate).Msg("failed to list bookings")

		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	res = dto.FromDetails(details)

	if err := s.cache.Save(ctx, cacheKey, res, s.cfg.Cache.TTL); err != nil {
		log.Error().Err(err).Msg("failed to save bookings to cache")
	}

	return res, nil
}

func (s *serviceImpl) Update(ctx context.Context, req dto.UpdateBookingRequest, id string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Booking.Update")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	current, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		return res, fmt.Errorf("failed to get booking: %w", err)
	}

	if current.ID == constant.Empty {
		return res, failure.NotFound("booking not found") // nolint:wrapcheck
	}

	lockRoom := current.RoomID
	if req.RoomID != "" {
		lockRoom = req.RoomID
	}

	var updated model.Booking

	err = s.repo.WithinRoomLock(ctx, lockRoom, func(tx *sqlx.Tx) error {
		booking, err := s.repo.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if booking.ID == constant.Empty {
			return failure.NotFound("booking not found") // nolint:wrapcheck
		}

		roomID, span, err := req.Target(booking)
		if err != nil || !span.Valid() {
			return failure.BadRequestFromString("check_out must be after check_in") // nolint:wrapcheck
		}

		if roomID != lockRoom {
			return failure.Conflict(errRoomMoved.Error()) // nolint:wrapcheck
		}

		fields := map[string]any{
			constant.FieldModifiedAt: timezone.Now(),
			constant.FieldModifiedBy: user,
		}

		if req.ChangesSpan() && booking.Blocking() {
			if err := s.ensureAvailable(ctx, tx, roomID, span, booking.ID); err != nil {
				return err
			}

			// the operator moved it somewhere free, so it no longer needs resolving
			if booking.Status == model.StatusConflict {
				fields[model.FieldStatus] = model.StatusConfirmed
				booking.Status = model.StatusConfirmed
			}
		}

		fields[model.FieldRoomID] = roomID
		fields[model.FieldCheckIn] = span.Start
		fields[model.FieldCheckOut] = span.End
		booking.RoomID, booking.CheckIn, booking.CheckOut = roomID, span.Start, span.End

		if req.GuestID != "" || req.GuestName != "" {
			guestID, guestName, err := s.resolveGuest(ctx, tx, user, req.GuestID, req.GuestName, req.GuestPhone)
			if err != nil {
				return err
			}

			fields[model.FieldGuestID] = guestID
			fields[model.FieldGuestName] = guestName
			booking.GuestID, booking.GuestName = guestID, guestName
		}

		if err := s.repo.UpdateTx(ctx, tx, fields, booking.ID); err != nil {
			return err
		}

		updated = booking

		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("booking_id", id).Msg("failed to update booking")

		return res, wrap("failed to update booking", err)
	}

	s.afterWrite(ctx, dto.EventBookingUpdated, updated, user)

	res.FromModel(updated)

	return res, nil
}

// Cancel releases the booking's dates but keeps the row. Cancelling twice is a no-op.
func (s *serviceImpl) Cancel(ctx context.Context, id string) (res dto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Booking.Cancel")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)

	current, err := s.repo.Get(ctx, shared.FilterByID(id, model.FieldID, model.TableName))
	if err != nil {
		return res, fmt.Errorf("failed to get booking: %w", err)
	}

	if current.ID == constant.Empty {
		return res, failure.NotFound("booking not found") // nolint:wrapcheck
	}

	booking := current.Booking

	err = s.repo.WithinRoomLock(ctx, current.RoomID, func(tx *sqlx.Tx) error {
		if booking, err = s.repo.GetTx(ctx, tx, id); err != nil {
			return err
		}

		if booking.ID == constant.Empty {
			return failure.NotFound("booking not found") // nolint:wrapcheck
		}

		if booking.Status == model.StatusCancelled {
			return nil
		}

		booking.Status = model.StatusCancelled

		return s.repo.UpdateTx(ctx, tx, map[string]any{
			model.FieldStatus:        model.StatusCancelled,
			constant.FieldModifiedAt: timezone.Now(),
			constant.FieldModifiedBy: user,
		}, id)
	})
	if err != nil {
		log.Error().Err(err).Str("booking_id", id).Msg("failed to cancel booking")

		return res, wrap("failed to cancel booking", err)
	}

	s.afterWrite(ctx, dto.EventBookingCancelled, booking, user)

	res.FromModel(booking)

	return res, nil
}

// Delete removes the booking row. Its guest is left untouched.
func (s *serviceImpl) Delete(ctx context.Context, id string) (err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Booking.Delete")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	filter := shared.FilterByID(id, model.FieldID, model.TableName)

	current, err := s.repo.Get(ctx, filter)
	if err != nil {
		log.Error().Err(err).Str("booking_id", id).Msg("failed to check if booking exists")

		return fmt.Errorf("failed to check if booking exists: %w", err)
	}

	if current.ID == constant.Empty {
		return failure.NotFound("booking not found") // nolint:wrapcheck
	}

	if err = s.repo.Delete(ctx, filter); err != nil {
		log.Error().Err(err).Str("booking_id", id).Msg("failed to delete booking")

		return fmt.Errorf("failed to delete booking: %w", err)
	}

	s.afterWrite(ctx, dto.EventBookingDeleted, current.Booking, user)

	return nil
}

func (s *serviceImpl) CheckAvailability(ctx context.Context, roomID string, span model.DateRange, excludeID string) (blocking []model.Booking, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Booking.CheckAvailability")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	if !span.Valid() {
		return nil, failure.BadRequestFromString("check_out must be after check_in") // nolint:wrapcheck
	}

	// a lookup only; writers re-check under the room lock
	blocking, err = s.repo.FindOverlapping(ctx, roomID, span, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}

	return blocking, nil
}

// ensureAvailable fails with a date conflict when span collides with a blocking booking of the room.
func (s *serviceImpl) ensureAvailable(ctx context.Context, tx *sqlx.Tx, roomID string, span model.DateRange, excludeID string) error {
	overlapping, err := s.repo.FindOverlappingTx(ctx, tx, roomID, span, excludeID)
	if err != nil {
		return err
	}

	for _, other := range overlapping {
		if other.Blocking() && other.Span().Overlaps(span) {
			log.Info().Str("room_id", roomID).Str("blocking_id", other.ID).Msg("booking rejected by date conflict")

			return failure.ConflictWithDetails(conflictMessage, dto.NewConflictDetails(other)) // nolint:wrapcheck
		}
	}

	return nil
}

// resolveGuest links an existing guest or, given only a name, registers a new one.
// A booking with neither keeps no guest reference.
func (s *serviceImpl) resolveGuest(ctx context.Context, tx *sqlx.Tx, user, guestID, name, phone string) (*string, string, error) {
	if guestID != "" {
		guest, err := s.guests.GetTx(ctx, tx, guestRepo.ByID(guestID))
		if err != nil {
			return nil, constant.Empty, err
		}

		if guest.ID == constant.Empty {
			return nil, constant.Empty, failure.BadRequestFromString("guest does not exist") // nolint:wrapcheck
		}

		if name == "" {
			name = guest.Name
		}

		return &guest.ID, name, nil
	}

	if name == "" {
		return nil, constant.Empty, failure.BadRequestFromString("guest_name or guest_id is required") // nolint:wrapcheck
	}

	create := gstDto.CreateGuestRequest{Name: name, Phone: phone}
	guest := create.ToModel(user)

	if err := s.guests.InsertTx(ctx, tx, guest); err != nil {
		return nil, constant.Empty, err
	}

	log.Info().Str("guest_id", guest.ID).Str("guest_name", guest.Name).Msg("registered guest from booking")

	return &guest.ID, name, nil
}

// afterWrite clears the caches before the write is acknowledged, then publishes the event in the background.
func (s *serviceImpl) afterWrite(ctx context.Context, eventType string, booking model.Booking, user string) {
	c := context.WithoutCancel(ctx)

	if err := s.cache.Delete(c, shared.BuildCacheKey(cacheGetBooking, booking.ID)); err != nil {
		log.Error().Err(err).Msg("failed to delete booking cache")
	}

	shared.InvalidateCaches(c, s.cache, CacheListBooking)

	go func() {
		event := dto.NewBookingEvent(eventType, booking, user)
		if err := s.kafka.SendMessages(c, s.cfg.Kafka.Topic.Booking, kafka.Message{Key: booking.RoomID, Value: event}); err != nil {
			log.Error().Err(err).Str("booking_id", booking.ID).Str("event", eventType).Msg("failed to publish booking event")
		}
	}()
}

// wrap keeps user-facing failures intact and wraps store errors.
func wrap(msg string, err error) error {
	var fail *failure.Failure
	if errors.As(err, &fail) {
		return fail
	}

	return fmt.Errorf("%s: %w", msg, err)
}
