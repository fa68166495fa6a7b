package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"lodge/config"
	otelMocks "lodge/infras/otel/mocks"
	bookingMocks "lodge/internal/domains/booking/mocks"
	bookingModel "lodge/internal/domains/booking/model"
	"lodge/internal/domains/guest/model"
	"lodge/internal/domains/guest/model/dto"
	"lodge/internal/domains/guest/service"
	cacheMocks "lodge/shared/cache/mocks"
	"lodge/shared/constant"
	"lodge/shared/failure"
	gModel "lodge/shared/model"
	"lodge/shared/timezone"
)

const roomID = "8b0f2b63-5e1c-4c2a-9a55-2f1f4c3f0a01"

func newService(t *testing.T) (service.Guest, *bookingMocks.Store) {
	t.Helper()

	ctrl := gomock.NewController(t)

	mockCache := cacheMocks.NewMockRedisCache(ctrl)
	mockCache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("miss")).AnyTimes()
	mockCache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mockCache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mockCache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	store := bookingMocks.NewStore()
	store.AddRoom(roomID, "Teak")

	return service.New(store.Guests(), store, &config.Config{}, mockCache, otelMocks.NewOtel()), store
}

func operator() context.Context {
	return context.WithValue(context.Background(), constant.ContextKeyUserID, "operator-id")
}

func seedGuest(t *testing.T, store *bookingMocks.Store, id, name, phone string, age time.Duration) model.Guest {
	t.Helper()

	guest := model.Guest{
		ID:       id,
		Name:     name,
		Phone:    phone,
		Metadata: gModel.Metadata{CreatedAt: timezone.Now().Add(-age)},
	}
	require.NoError(t, store.Guests().Insert(context.Background(), guest))

	return guest
}

func seedBooking(store *bookingMocks.Store, id, guestID, checkIn, checkOut string) {
	start, _ := timezone.ParseDate(checkIn)
	end, _ := timezone.ParseDate(checkOut)

	store.Put(bookingModel.Booking{
		ID:        id,
		RoomID:    roomID,
		GuestID:   &guestID,
		GuestName: "Ayu",
		CheckIn:   start,
		CheckOut:  end,
		Status:    bookingModel.StatusConfirmed,
		Source:    bookingModel.SourceManual,
	})
}

func TestGuestService_Search(t *testing.T) {
	svc, store := newService(t)

	seedGuest(t, store, "g1", "Ayu Lestari", "0812111", 3*time.Hour)
	seedGuest(t, store, "g2", "Budi", "0813222", 2*time.Hour)
	seedGuest(t, store, "g3", "Citra Ayu", "0814333", time.Hour)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "by name, case-insensitive", query: "ayu", want: []string{"g3", "g1"}},
		{name: "by phone", query: "0813", want: []string{"g2"}},
		{name: "no match", query: "zzz", want: []string{}},
		{name: "empty query lists newest", query: "  ", want: []string{"g3", "g2", "g1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Search(context.Background(), tt.query)
			require.NoError(t, err)

			got := []string{}
			for _, guest := range res.Guests {
				got = append(got, guest.ID)
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGuestService_Search_Limit(t *testing.T) {
	svc, store := newService(t)

	for i := range model.SearchLimit + 5 {
		seedGuest(t, store, fmt.Sprintf("g%02d", i), "Guest", "08", time.Duration(i)*time.Minute)
	}

	res, err := svc.Search(context.Background(), "guest")
	require.NoError(t, err)
	assert.Len(t, res.Guests, model.SearchLimit)
	assert.Equal(t, "g00", res.Guests[0].ID)
}

func TestGuestService_Get(t *testing.T) {
	svc, store := newService(t)

	seedGuest(t, store, "g1", "Ayu", "0812", 0)

	res, err := svc.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "Ayu", res.Name)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, 404, failure.GetCode(err))
}

func TestGuestService_History(t *testing.T) {
	svc, store := newService(t)

	seedGuest(t, store, "g1", "Ayu", "0812", 0)
	seedGuest(t, store, "g2", "Budi", "0813", 0)
	seedBooking(store, "b1", "g1", "2025-05-01", "2025-05-03")
	seedBooking(store, "b2", "g1", "2025-06-01", "2025-06-03")
	seedBooking(store, "b3", "g2", "2025-07-01", "2025-07-03")

	res, err := svc.History(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "b2", res[0].ID)
	assert.Equal(t, "b1", res[1].ID)
	assert.Equal(t, "Teak", res[0].Room.Name)

	_, err = svc.History(context.Background(), "missing")
	assert.Equal(t, 404, failure.GetCode(err))
}

func TestGuestService_CreateAndUpdate(t *testing.T) {
	svc, _ := newService(t)

	email := "ayu@example.com"

	created, err := svc.Create(operator(), dto.CreateGuestRequest{Name: "  Ayu ", Phone: "0812", Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Ayu", created.Name)
	assert.Equal(t, 0, created.VisitCount)
	assert.Equal(t, "operator-id", created.CreatedBy)

	notes := "prefers the garden room"

	updated, err := svc.Update(operator(), dto.UpdateGuestRequest{Notes: &notes}, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ayu", updated.Name, "omitted fields keep their value")
	require.NotNil(t, updated.Notes)
	assert.Equal(t, notes, *updated.Notes)
	require.NotNil(t, updated.Email)
	assert.Equal(t, email, *updated.Email)

	_, err = svc.Update(operator(), dto.UpdateGuestRequest{Name: "Budi"}, "missing")
	require.Error(t, err)
	assert.Equal(t, 404, failure.GetCode(err))
}

func TestGuestService_Delete(t *testing.T) {
	svc, store := newService(t)

	seedGuest(t, store, "g1", "Ayu", "0812", 0)
	seedBooking(store, "b1", "g1", "2025-06-01", "2025-06-03")
	seedBooking(store, "b2", "g1", "2025-07-01", "2025-07-03")

	require.NoError(t, svc.Delete(operator(), "g1"))

	_, err := svc.Get(context.Background(), "g1")
	assert.Equal(t, 404, failure.GetCode(err))

	bookings := store.Bookings()
	require.Len(t, bookings, 2, "bookings survive their guest")

	for _, booking := range bookings {
		assert.Nil(t, booking.GuestID)
		assert.Equal(t, "Ayu", booking.GuestName)
	}

	err = svc.Delete(operator(), "g1")
	require.Error(t, err)
	assert.Equal(t, 404, failure.GetCode(err))
}
