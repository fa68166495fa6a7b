package service

import (
	"context"
	"fmt"
	"net/http"

	"lodge/config"
	"lodge/infras/otel"
	bookingModel "lodge/internal/domains/booking/model"
	bookingDto "lodge/internal/domains/booking/model/dto"
	bookingRepo "lodge/internal/domains/booking/repository"
	bookingService "lodge/internal/domains/booking/service"
	"lodge/internal/domains/guest/model"
	"lodge/internal/domains/guest/model/dto"
	"lodge/internal/domains/guest/repository"
	"lodge/shared"
	"lodge/shared/cache"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

const cacheGetGuest = "guest:get"

type Guest interface {
	Search(ctx context.Context, query string) (dto.GetGuestsResponse, error)
	Get(ctx context.Context, id string) (dto.GuestResponse, error)
	History(ctx context.Context, id string) ([]bookingDto.BookingResponse, error)
	Create(ctx context.Context, req dto.CreateGuestRequest) (dto.GuestResponse, error)
	Update(ctx context.Context, req dto.UpdateGuestRequest, id string) (dto.GuestResponse, error)
	Delete(ctx context.Context, id string) error
}

type serviceImpl struct {
	repo     repository.Guest
	bookings bookingRepo.Booking
	cfg      *config.Config
	cache    cache.RedisCache
	otel     otel.Otel
}

func New(repo repository.Guest, bookings bookingRepo.Booking, cfg *config.Config, cache cache.RedisCache, otel otel.Otel) Guest {
	return &serviceImpl{
		repo:     repo,
		bookings: bookings,
		cfg:      cfg,
		cache:    cache,
		otel:     otel,
	}
}

// Search returns at most model.SearchLimit guests whose name or phone contains query, newest first.
// An empty query lists the newest guests.
func (s *serviceImpl) Search(ctx context.Context, query string) (res dto.GetGuestsResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Guest.Search")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	params := gDto.QueryParams{
		Limit:   model.SearchLimit,
		SortBy:  model.TableName + "." + constant.FieldCreatedAt,
		SortDir: gDto.SortDirDesc,
	}

	models, err := s.repo.GetAll(ctx, params, dto.SearchFilter(query))
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("failed to search guests")

		return res, fmt.Errorf("failed to search guests: %w", err)
	}

	res.FromModels(models)

	return res, nil
}

func (s *serviceImpl) Get(ctx context.Context, id string) (res dto.GuestResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Guest.Get")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	cacheKey := shared.BuildCacheKey(cacheGetGuest, id)

	if err = s.cache.Get(ctx, cacheKey, &res); err == nil {
		return res, nil
	}

	guest, err := s.repo.Get(ctx, repository.ByID(id))
	if err != nil {
		log.Error().Err(err).Str("guest_id", id).Msg("failed to get guest")

		return res, fmt.Errorf("failed to get guest: %w", err)
	}

	if guest.ID == constant.Empty {
		return res, failure.NotFound("guest not found") // nolint:wrapcheck
	}

	res.FromModel(guest)

	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Save(c, cacheKey, res, s.cfg.Cache.TTL); err != nil {
			log.Error().Err(err).Msg("failed to save guest to cache")
		}
	}()

	return res, nil
}

// History lists the guest's bookings, latest stay first.
func (s *serviceImpl) History(ctx context.Context, id string) (res []bookingDto.BookingResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Guest.History")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	exist, err := s.repo.Exist(ctx, repository.ByID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to check if guest exists: %w", err)
	}

	if !exist {
		return nil, failure.NotFound("guest not found") // nolint:wrapcheck
	}

	params := gDto.QueryParams{SortBy: bookingModel.TableName + "." + bookingModel.FieldCheckIn, SortDir: gDto.SortDirDesc}

	details, err := s.bookings.GetAll(ctx, params, bookingRepo.GuestFilter(id))
	if err != nil {
		log.Error().Err(err).Str("guest_id", id).Msg("failed to get guest history")

		return nil, fmt.Errorf("failed to get guest history: %w", err)
	}

	return bookingDto.FromDetails(details), nil
}

func (s *serviceImpl) Create(ctx context.Context, req dto.CreateGuestRequest) (res dto.GuestResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Guest.Create")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	guest := req.ToModel(user)

	if err = s.repo.Insert(ctx, guest); err != nil {
		log.Error().Err(err).Str("name", guest.Name).Msg("failed to create guest")

		return res, fmt.Errorf("failed to create guest: %w", err)
	}

	res.FromModel(guest)

	return res, nil
}

func (s *serviceImpl) Update(ctx context.Context, req dto.UpdateGuestRequest, id string) (res dto.GuestResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Guest.Update")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	filter := repository.ByID(id)

	exist, err := s.repo.Exist(ctx, filter)
	if err != nil {
		return res, fmt.Errorf("failed to check if guest exists: %w", err)
	}

	if !exist {
		return res, failure.NotFound("guest not found") // nolint:wrapcheck
	}

	if err = s.repo.Update(ctx, shared.TransformFields(req, user), filter); err != nil {
		log.Error().Err(err).Str("guest_id", id).Msg("failed to update guest")

		return res, fmt.Errorf("failed to update guest: %w", err)
	}

	s.invalidate(ctx, id)

	guest, err := s.repo.Get(ctx, filter)
	if err != nil {
		return res, fmt.Errorf("failed to get guest: %w", err)
	}

	res.FromModel(guest)

	return res, nil
}

// Delete removes the guest. Its bookings survive with guest_id cleared and their guest_name intact.
func (s *serviceImpl) Delete(ctx context.Context, id string) (err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Guest.Delete")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	user, _ := ctx.Value(constant.ContextKeyUserID).(string)
	filter := repository.ByID(id)

	err = s.repo.Transaction(ctx, func(tx *sqlx.Tx) error {
		guest, err := s.repo.GetTx(ctx, tx, filter, model.FieldID)
		if err != nil {
			return err
		}

		if guest.ID == constant.Empty {
			return failure.NotFound("guest not found") // nolint:wrapcheck
		}

		if err := s.bookings.UnlinkGuestTx(ctx, tx, id, user); err != nil {
			return err
		}

		return s.repo.DeleteTx(ctx, tx, filter)
	})
	if err != nil {
		if failure.Is(err, http.StatusNotFound) {
			return err
		}

		log.Error().Err(err).Str("guest_id", id).Msg("failed to delete guest")

		return fmt.Errorf("failed to delete guest: %w", err)
	}

	s.invalidate(ctx, id)

	return nil
}

// invalidate drops the cached guest and every cached booking listing, which embeds guest details.
func (s *serviceImpl) invalidate(ctx context.Context, id string) {
	go func() {
		c := context.WithoutCancel(ctx)

		if err := s.cache.Delete(c, shared.BuildCacheKey(cacheGetGuest, id)); err != nil {
			log.Error().Err(err).Msg("failed to delete guest cache")
		}

		shared.InvalidateCaches(c, s.cache, bookingService.CacheListBooking)
	}()
}
