package mocks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"lodge/internal/domains/booking/model"
	"lodge/internal/domains/booking/repository"
	guestModel "lodge/internal/domains/guest/model"
	guestRepo "lodge/internal/domains/guest/repository"
	"lodge/shared/constant"
	"lodge/shared/dto"
	"lodge/shared/failure"
	"lodge/shared/timezone"

	"github.com/jmoiron/sqlx"
)

// Store is an in-memory booking store for service tests. WithinRoomLock serializes writers the way
// the advisory lock does, and inserts enforce the manual no-overlap exclusion constraint.
type Store struct {
	lock sync.Mutex
	mu   sync.RWMutex

	bookings map[string]model.Booking
	guests   map[string]guestModel.Guest
	rooms    map[string]string

	// UpsertErr fails the upsert of the given external ids.
	UpsertErr map[string]error
}

var (
	_ repository.Booking = (*Store)(nil)
	_ guestRepo.Guest    = (*GuestStore)(nil)
)

func NewStore() *Store {
	return &Store{
		bookings:  map[string]model.Booking{},
		guests:    map[string]guestModel.Guest{},
		rooms:     map[string]string{},
		UpsertErr: map[string]error{},
	}
}

func (s *Store) AddRoom(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rooms[id] = name
}

func (s *Store) Put(booking model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookings[booking.ID] = booking
}

// Bookings returns every stored booking ordered by check-in, then id.
func (s *Store) Bookings() []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(func(model.Booking) bool { return true })
}

func (s *Store) Guests() *GuestStore {
	return &GuestStore{store: s}
}

func (s *Store) Get(_ context.Context, filter dto.FilterGroup) (model.BookingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if found := s.sorted(s.matcher(filter)); len(found) > 0 {
		return s.detail(found[0]), nil
	}

	return model.BookingDetail{}, nil
}

// GetAll orders by check-in, reversed when params ask for DESC.
func (s *Store) GetAll(_ context.Context, params dto.QueryParams, filter dto.FilterGroup) ([]model.BookingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := []model.BookingDetail{}
	for _, booking := range s.sorted(s.matcher(filter)) {
		res = append(res, s.detail(booking))
	}

	if params.SortDir == dto.SortDirDesc {
		slices.Reverse(res)
	}

	return res, nil
}

func (s *Store) Exist(_ context.Context, filter dto.FilterGroup) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sorted(s.matcher(filter))) > 0, nil
}

func (s *Store) Count(_ context.Context, filter dto.FilterGroup) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sorted(s.matcher(filter))), nil
}

func (s *Store) Delete(_ context.Context, filter dto.FilterGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, booking := range s.sorted(s.matcher(filter)) {
		delete(s.bookings, booking.ID)
	}

	return nil
}

func (s *Store) WithinRoomLock(_ context.Context, _ string, fn func(tx *sqlx.Tx) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return fn(nil)
}

func (s *Store) GetTx(_ context.Context, _ *sqlx.Tx, id string) (model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.bookings[id], nil
}

func (s *Store) FindOverlapping(_ context.Context, roomID string, span model.DateRange, excludeID string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(s.matcher(repository.OverlapFilter(roomID, span, excludeID))), nil
}

func (s *Store) FindOverlappingTx(_ context.Context, _ *sqlx.Tx, roomID string, span model.DateRange, excludeID string) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sorted(s.matcher(repository.OverlapFilter(roomID, span, excludeID))), nil
}

func (s *Store) InsertTx(_ context.Context, _ *sqlx.Tx, booking model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkConstraints(booking); err != nil {
		return err
	}

	s.bookings[booking.ID] = booking

	return nil
}

func (s *Store) UpdateTx(_ context.Context, _ *sqlx.Tx, fields map[string]any, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil
	}

	for key, value := range fields {
		switch key {
		case model.FieldRoomID:
			booking.RoomID, _ = value.(string)
		case model.FieldGuestID:
			booking.GuestID, _ = value.(*string)
		case model.FieldGuestName:
			booking.GuestName, _ = value.(string)
		case model.FieldCheckIn:
			booking.CheckIn, _ = value.(time.Time)
		case model.FieldCheckOut:
			booking.CheckOut, _ = value.(time.Time)
		case model.FieldStatus:
			booking.Status, _ = value.(string)
		case constant.FieldModifiedAt:
			booking.ModifiedAt, _ = value.(time.Time)
		case constant.FieldModifiedBy:
			booking.ModifiedBy, _ = value.(string)
		}
	}

	if err := s.checkConstraints(booking); err != nil {
		return err
	}

	s.bookings[id] = booking

	return nil
}

func (s *Store) UpsertExternalTx(_ context.Context, _ *sqlx.Tx, booking model.Booking) (model.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if booking.ExternalID == nil {
		return model.UpsertOutcome{}, fmt.Errorf("external booking %s has no external id", booking.ID)
	}

	if err := s.UpsertErr[*booking.ExternalID]; err != nil {
		return model.UpsertOutcome{}, err
	}

	for id, existing := range s.bookings {
		if existing.ExternalID == nil || *existing.ExternalID != *booking.ExternalID {
			continue
		}

		existing.RoomID = booking.RoomID
		existing.GuestName = booking.GuestName
		existing.CheckIn = booking.CheckIn
		existing.CheckOut = booking.CheckOut
		existing.RawData = booking.RawData
		existing.ModifiedAt = booking.ModifiedAt
		existing.ModifiedBy = booking.ModifiedBy

		if existing.Status != model.StatusCancelled {
			existing.Status = booking.Status
		}

		s.bookings[id] = existing

		return model.UpsertOutcome{Status: existing.Status}, nil
	}

	s.bookings[booking.ID] = booking

	return model.UpsertOutcome{Inserted: true, Status: booking.Status}, nil
}

func (s *Store) UnlinkGuestTx(_ context.Context, _ *sqlx.Tx, guestID string, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, booking := range s.bookings {
		if booking.GuestID != nil && *booking.GuestID == guestID {
			booking.GuestID = nil
			booking.ModifiedBy = user
			s.bookings[id] = booking
		}
	}

	return nil
}

// checkConstraints mirrors the table constraints: valid span and no overlapping manual bookings.
func (s *Store) checkConstraints(booking model.Booking) error {
	if !booking.Span().Valid() {
		return failure.BadRequestFromString("check_out must be after check_in") // nolint:wrapcheck
	}

	if booking.Source != model.SourceManual || !booking.Blocking() {
		return nil
	}

	for _, other := range s.bookings {
		if other.ID == booking.ID || other.RoomID != booking.RoomID || other.Source != model.SourceManual || !other.Blocking() {
			continue
		}

		if other.Span().Overlaps(booking.Span()) {
			return failure.Conflict("date conflict: the room is already booked for these dates") // nolint:wrapcheck
		}
	}

	return nil
}

func (s *Store) detail(booking model.Booking) model.BookingDetail {
	detail := model.BookingDetail{Booking: booking, RoomName: s.rooms[booking.RoomID]}

	if booking.GuestID != nil {
		if guest, ok := s.guests[*booking.GuestID]; ok {
			phone := guest.Phone
			detail.GuestPhone = &phone
			detail.GuestEmail = guest.Email
		}
	}

	return detail
}

func (s *Store) sorted(keep func(model.Booking) bool) []model.Booking {
	res := []model.Booking{}

	for _, booking := range s.bookings {
		if keep(booking) {
			res = append(res, booking)
		}
	}

	slices.SortFunc(res, func(a, b model.Booking) int {
		if c := a.CheckIn.Compare(b.CheckIn); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return res
}

func (s *Store) matcher(filter dto.FilterGroup) func(model.Booking) bool {
	return func(booking model.Booking) bool {
		guestID := constant.Empty
		if booking.GuestID != nil {
			guestID = *booking.GuestID
		}

		externalID := constant.Empty
		if booking.ExternalID != nil {
			externalID = *booking.ExternalID
		}

		return matchGroup(filter, map[string]string{
			model.FieldID:         booking.ID,
			model.FieldRoomID:     booking.RoomID,
			model.FieldGuestID:    guestID,
			model.FieldGuestName:  booking.GuestName,
			model.FieldCheckIn:    timezone.FormatDate(booking.CheckIn),
			model.FieldCheckOut:   timezone.FormatDate(booking.CheckOut),
			model.FieldStatus:     booking.Status,
			model.FieldSource:     booking.Source,
			model.FieldExternalID: externalID,
		})
	}
}

// GuestStore is the guest table of a Store.
type GuestStore struct {
	store *Store
}

func (g *GuestStore) Insert(ctx context.Context, guest guestModel.Guest) error {
	return g.InsertTx(ctx, nil, guest)
}

func (g *GuestStore) InsertTx(_ context.Context, _ *sqlx.Tx, guest guestModel.Guest) error {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	g.store.guests[guest.ID] = guest

	return nil
}

func (g *GuestStore) Get(ctx context.Context, filter dto.FilterGroup, _ ...string) (guestModel.Guest, error) {
	return g.GetTx(ctx, nil, filter)
}

func (g *GuestStore) GetTx(_ context.Context, _ *sqlx.Tx, filter dto.FilterGroup, _ ...string) (guestModel.Guest, error) {
	g.store.mu.RLock()
	defer g.store.mu.RUnlock()

	if found := g.matching(filter); len(found) > 0 {
		return found[0], nil
	}

	return guestModel.Guest{}, nil
}

func (g *GuestStore) GetAll(_ context.Context, params dto.QueryParams, filter dto.FilterGroup, _ ...string) ([]guestModel.Guest, error) {
	g.store.mu.RLock()
	defer g.store.mu.RUnlock()

	res := g.matching(filter)
	if params.Limit > 0 && len(res) > params.Limit {
		res = res[:params.Limit]
	}

	return res, nil
}

func (g *GuestStore) Exist(_ context.Context, filter dto.FilterGroup) (bool, error) {
	g.store.mu.RLock()
	defer g.store.mu.RUnlock()

	return len(g.matching(filter)) > 0, nil
}

func (g *GuestStore) Update(_ context.Context, req map[string]any, filter dto.FilterGroup) error {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	for _, guest := range g.matching(filter) {
		for key, value := range req {
			switch key {
			case guestModel.FieldName:
				guest.Name, _ = value.(string)
			case guestModel.FieldPhone:
				guest.Phone, _ = value.(string)
			case guestModel.FieldEmail:
				if email, ok := value.(string); ok {
					guest.Email = &email
				}
			case guestModel.FieldNotes:
				if notes, ok := value.(string); ok {
					guest.Notes = &notes
				}
			}
		}

		g.store.guests[guest.ID] = guest
	}

	return nil
}

func (g *GuestStore) DeleteTx(_ context.Context, _ *sqlx.Tx, filter dto.FilterGroup) error {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	for _, guest := range g.matching(filter) {
		for _, booking := range g.store.bookings {
			if booking.GuestID != nil && *booking.GuestID == guest.ID {
				return failure.Conflict("guest is still referenced by a booking") // nolint:wrapcheck
			}
		}

		delete(g.store.guests, guest.ID)
	}

	return nil
}

func (g *GuestStore) Transaction(_ context.Context, fn func(tx *sqlx.Tx) error) error {
	g.store.lock.Lock()
	defer g.store.lock.Unlock()

	return fn(nil)
}

func (g *GuestStore) IncrementVisitTx(_ context.Context, _ *sqlx.Tx, id string) error {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	guest, ok := g.store.guests[id]
	if !ok {
		return fmt.Errorf("guest %s not found", id)
	}

	guest.VisitCount++
	g.store.guests[id] = guest

	return nil
}

func (g *GuestStore) matching(filter dto.FilterGroup) []guestModel.Guest {
	res := []guestModel.Guest{}

	for _, guest := range g.store.guests {
		if matchGroup(filter, map[string]string{
			guestModel.FieldID:    guest.ID,
			guestModel.FieldName:  guest.Name,
			guestModel.FieldPhone: guest.Phone,
		}) {
			res = append(res, guest)
		}
	}

	slices.SortFunc(res, func(a, b guestModel.Guest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return res
}

func matchGroup(group dto.FilterGroup, row map[string]string) bool {
	if len(group.Filters) == 0 {
		return true
	}

	or := group.Operator == dto.FilterGroupOperatorOr

	for _, item := range group.Filters {
		var ok bool

		switch filter := item.(type) {
		case dto.Filter:
			ok = matchFilter(filter, row)
		case dto.FilterGroup:
			ok = matchGroup(filter, row)
		default:
			continue
		}

		if or && ok {
			return true
		}

		if !or && !ok {
			return false
		}
	}

	return !or
}

func matchFilter(filter dto.Filter, row map[string]string) bool {
	got := row[filter.Field]

	want := fmt.Sprint(filter.Value)
	if at, ok := filter.Value.(time.Time); ok {
		want = timezone.FormatDate(at)
	}

	switch filter.Operator {
	case dto.FilterOperatorEq:
		return got == want
	case dto.FilterOperatorNotEq:
		return got != want
	case dto.FilterOperatorLess:
		return got < want
	case dto.FilterOperatorLessEq:
		return got <= want
	case dto.FilterOperatorGreater:
		return got > want
	case dto.FilterOperatorGreaterEq:
		return got >= want
	case dto.FilterOperatorILike, dto.FilterOperatorLike:
		return strings.Contains(strings.ToLower(got), strings.ToLower(want))
	case dto.FilterIsNull:
		return got == constant.Empty
	case dto.FilterIsNotNull:
		return got != constant.Empty
	}

	return false
}
