package service

//go:generate go run go.uber.org/mock/mockgen -source=./service.go -destination=../mocks/service_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lodge/config"
	"lodge/infras/ical"
	"lodge/infras/kafka"
	"lodge/infras/otel"
	"lodge/infras/s3"
	bookingModel "lodge/internal/domains/booking/model"
	bookingRepo "lodge/internal/domains/booking/repository"
	bookingService "lodge/internal/domains/booking/service"
	roomModel "lodge/internal/domains/room/model"
	roomRepo "lodge/internal/domains/room/repository"
	"lodge/internal/domains/sync/model"
	"lodge/internal/domains/sync/model/dto"
	"lodge/shared"
	"lodge/shared/cache"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/timezone"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"
)

const archiveTimeLayout = "20060102T150405Z"

type Sync interface {
	// SyncAll reconciles every room that has a feed. One room's failure never fails the run;
	// it is reported in that room's result instead.
	SyncAll(ctx context.Context, trigger string) (dto.SyncResponse, error)
	SyncRoom(ctx context.Context, roomID string) (dto.RoomResult, error)
}

type metrics struct {
	synced        metric.Int64Counter
	conflicts     metric.Int64Counter
	feedFailures  metric.Int64Counter
	eventFailures metric.Int64Counter
}

type serviceImpl struct {
	rooms    roomRepo.Room
	bookings bookingRepo.Booking
	feeds    ical.Client
	storage  s3.S3
	cfg      *config.Config
	cache    cache.RedisCache
	kafka    kafka.Client
	otel     otel.Otel
	metrics  metrics
}

func New(
	rooms roomRepo.Room,
	bookings bookingRepo.Booking,
	feeds ical.Client,
	storage s3.S3,
	cfg *config.Config,
	cache cache.RedisCache,
	kafka kafka.Client,
	otel otel.Otel,
) Sync {
	return &serviceImpl{
		rooms:    rooms,
		bookings: bookings,
		feeds:    feeds,
		storage:  storage,
		cfg:      cfg,
		cache:    cache,
		kafka:    kafka,
		otel:     otel,
		metrics:  newMetrics(otel.Meter(constant.OtelServiceScopeName + ".sync")),
	}
}

func newMetrics(meter metric.Meter) metrics {
	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			log.Error().Err(err).Str("metric", name).Msg("failed to create sync counter")

			return noop.Int64Counter{}
		}

		return c
	}

	return metrics{
		synced:        counter(model.MetricBookingsSynced, "External bookings upserted from feeds"),
		conflicts:     counter(model.MetricConflicts, "External bookings that collide with a manual booking"),
		feedFailures:  counter(model.MetricFeedFailures, "Feeds that could not be fetched or parsed"),
		eventFailures: counter(model.MetricEventFailures, "Feed events that could not be stored"),
	}
}

func (s *serviceImpl) SyncAll(ctx context.Context, trigger string) (res dto.SyncResponse, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Sync.SyncAll")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	owner := uuid.NewString()
	ttl := time.Duration(s.cfg.Sync.LockTTLSeconds) * time.Second

	if err = s.cache.Lock(ctx, model.LockKey, owner, ttl); err != nil {
		if errors.Is(err, cache.ErrLocked) {
			return res, failure.Conflict("a sync run is already in progress") // nolint:wrapcheck
		}

		return res, fmt.Errorf("failed to take sync lock: %w", err)
	}

	defer func() {
		if err := s.cache.Unlock(context.WithoutCancel(ctx), model.LockKey, owner); err != nil {
			log.Error().Err(err).Msg("failed to release sync lock")
		}
	}()

	startedAt := timezone.Now()

	params := gDto.QueryParams{SortBy: roomModel.TableName + "." + roomModel.FieldName, SortDir: gDto.SortDirAsc}

	rooms, err := s.rooms.GetAll(ctx, params, roomRepo.FeedFilter())
	if err != nil {
		log.Error().Err(err).Msg("failed to list rooms with a feed")

		return res, fmt.Errorf("failed to list rooms with a feed: %w", err)
	}

	results := make([]dto.RoomResult, len(rooms))

	var group errgroup.Group
	group.SetLimit(max(s.cfg.Sync.Concurrency, 1))

	for i, room := range rooms {
		group.Go(func() error {
			results[i] = s.syncRoom(ctx, room)

			return nil
		})
	}

	_ = group.Wait()

	res.Summarize(results)

	log.Info().
		Str("trigger", trigger).
		Int("rooms", len(rooms)).
		Int("synced_count", res.SyncedCount).
		Int("conflicts", res.Conflicts).
		Int("failed_rooms", res.FailedRooms).
		Msg("sync completed")

	s.afterSync(ctx, dto.NewSyncEvent(trigger, res, startedAt))

	return res, nil
}

func (s *serviceImpl) SyncRoom(ctx context.Context, roomID string) (res dto.RoomResult, err error) {
	ctx, scope := s.otel.NewScope(ctx, constant.OtelServiceScopeName, constant.OtelServiceScopeName+".Sync.SyncRoom")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	room, err := s.rooms.Get(ctx, shared.FilterByID(roomID, roomModel.FieldID, roomModel.TableName))
	if err != nil {
		return res, fmt.Errorf("failed to get room: %w", err)
	}

	if room.ID == constant.Empty {
		return res, failure.NotFound("room not found") // nolint:wrapcheck
	}

	if !room.HasFeed() {
		return res, failure.BadRequestFromString("room has no calendar feed") // nolint:wrapcheck
	}

	startedAt := timezone.Now()
	res = s.syncRoom(ctx, room)

	summary := dto.SyncResponse{}
	summary.Summarize([]dto.RoomResult{res})
	s.afterSync(ctx, dto.NewSyncEvent(model.TriggerRoom, summary, startedAt))

	return res, nil
}

// syncRoom fetches the room's feed and upserts its events in feed order. Each event is its own
// transaction, so a failing event is counted and skipped.
func (s *serviceImpl) syncRoom(ctx context.Context, room roomModel.Room) dto.RoomResult {
	res := dto.NewRoomResult(room)
	attrs := metric.WithAttributes(attribute.String("room.id", room.ID))

	feed, err := s.feeds.Fetch(ctx, *room.ICalURL)
	if err != nil {
		log.Warn().Err(err).Str("room_id", room.ID).Str("room", room.Name).Msg("skipping room, feed unavailable")
		s.metrics.feedFailures.Add(ctx, 1, attrs)

		res.Error = err.Error()

		return res
	}

	s.archive(ctx, room, feed)

	for event := range feed.Events() {
		conflict, err := s.apply(ctx, room, event)
		if err != nil {
			log.Error().Err(err).Str("room_id", room.ID).Str("external_id", event.ExternalID).Msg("failed to sync feed event")

			res.EventFailures++

			continue
		}

		res.SyncedCount++

		if conflict {
			log.Info().Str("room_id", room.ID).Str("external_id", event.ExternalID).Msg("external booking collides with a manual booking")

			res.Conflicts++
		}
	}

	s.metrics.synced.Add(ctx, int64(res.SyncedCount), attrs)
	s.metrics.conflicts.Add(ctx, int64(res.Conflicts), attrs)
	s.metrics.eventFailures.Add(ctx, int64(res.EventFailures), attrs)

	return res
}

// apply classifies an event against the room's bookings and upserts it under the room lock.
// Only a manual booking makes an external one a conflict; the status is recomputed on every pass.
// It reports a conflict only when the stored row ends up needing resolution.
func (s *serviceImpl) apply(ctx context.Context, room roomModel.Room, event ical.Event) (conflict bool, err error) {
	booking := dto.ExternalBooking(room.ID, event, s.cfg.Sync.DefaultGuestName)

	err = s.bookings.WithinRoomLock(ctx, room.ID, func(tx *sqlx.Tx) error {
		overlapping, err := s.bookings.FindOverlappingTx(ctx, tx, room.ID, booking.Span(), constant.Empty)
		if err != nil {
			return err
		}

		for _, other := range overlapping {
			if other.Source == bookingModel.SourceManual {
				booking.Status = bookingModel.StatusConflict

				break
			}
		}

		outcome, err := s.bookings.UpsertExternalTx(ctx, tx, booking)
		if err != nil {
			return err
		}

		conflict = outcome.Status == bookingModel.StatusConflict

		return nil
	})

	return conflict, err
}

// archive keeps the raw feed in object storage for diagnostics. Failures are logged only.
func (s *serviceImpl) archive(ctx context.Context, room roomModel.Room, feed *ical.Feed) {
	bucket := s.cfg.Sync.ArchiveBucket
	if bucket == constant.Empty {
		return
	}

	directory := model.ArchiveDirectory + "/" + room.ID
	fileName := timezone.Now().UTC().Format(archiveTimeLayout) + ".ics"

	if _, err := s.storage.Upload(ctx, bucket, directory, fileName, model.ArchiveContentType, feed.Raw); err != nil {
		log.Warn().Err(err).Str("room_id", room.ID).Msg("failed to archive feed")
	}
}

func (s *serviceImpl) afterSync(ctx context.Context, event dto.SyncEvent) {
	c := context.WithoutCancel(ctx)

	shared.InvalidateCaches(c, s.cache, bookingService.CacheListBooking)

	go func() {
		if err := s.kafka.SendMessages(c, s.cfg.Kafka.Topic.Sync, kafka.Message{Key: event.Trigger, Value: event}); err != nil {
			log.Error().Err(err).Msg("failed to publish sync event")
		}
	}()
}
