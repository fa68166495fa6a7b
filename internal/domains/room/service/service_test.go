package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"lodge/config"
	"lodge/infras/otel/mocks"
	roomMocks "lodge/internal/domains/room/mocks"
	"lodge/internal/domains/room/model"
	"lodge/internal/domains/room/model/dto"
	"lodge/internal/domains/room/service"
	cacheMocks "lodge/shared/cache/mocks"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	"lodge/shared/failure"
)

func newService(t *testing.T) (service.Room, *roomMocks.MockRoom, *cacheMocks.MockRedisCache) {
	t.Helper()

	ctrl := gomock.NewController(t)

	mockRepo := roomMocks.NewMockRoom(ctrl)
	mockCache := cacheMocks.NewMockRedisCache(ctrl)

	cfg := &config.Config{}
	cfg.Cache.TTL = 3600

	return service.New(mockRepo, cfg, mockCache, mocks.NewOtel()), mockRepo, mockCache
}

func allowCacheWrites(mockCache *cacheMocks.MockRedisCache) {
	mockCache.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mockCache.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	mockCache.EXPECT().Clear(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func TestRoomService_Create(t *testing.T) {
	feed := "  https://example.test/room.ics "

	tests := []struct {
		name      string
		req       dto.CreateRoomRequest
		repoErr   error
		wantColor string
		wantFeed  *string
		wantErr   bool
	}{
		{
			name:      "defaults color and trims feed",
			req:       dto.CreateRoomRequest{Name: "Teak", Type: "Deluxe", Capacity: 2, ICalURL: &feed},
			wantColor: model.DefaultColor,
			wantFeed:  func() *string { s := "https://example.test/room.ics"; return &s }(),
		},
		{
			name:      "keeps explicit color",
			req:       dto.CreateRoomRequest{Name: "Pine", Type: "Standard", Capacity: 3, Color: "#ff0000"},
			wantColor: "#ff0000",
		},
		{
			name:    "repository error",
			req:     dto.CreateRoomRequest{Name: "Pine", Type: "Standard", Capacity: 3},
			repoErr: errors.New("database error"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mockRepo, mockCache := newService(t)
			allowCacheWrites(mockCache)

			var inserted model.Room

			mockRepo.EXPECT().
				Insert(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, room model.Room) error {
					inserted = room

					return tt.repoErr
				})

			ctx := context.WithValue(context.Background(), constant.ContextKeyUserID, "admin-id")
			res, err := svc.Create(ctx, tt.req)

			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, res.ID)
			assert.Equal(t, tt.wantColor, res.Color)
			assert.Equal(t, tt.wantFeed, res.ICalURL)
			assert.Equal(t, "admin-id", inserted.CreatedBy)
		})
	}
}

func TestRoomService_GetAll(t *testing.T) {
	svc, mockRepo, mockCache := newService(t)
	allowCacheWrites(mockCache)

	mockCache.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("miss")).Times(2)
	mockRepo.EXPECT().Count(gomock.Any(), gomock.Any()).Return(3, nil)
	mockRepo.EXPECT().
		GetAll(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gDto.QueryParams, _ gDto.FilterGroup, _ ...string) ([]model.Room, error) {
			assert.Equal(t, "rooms.name", req.SortBy)
			assert.Equal(t, gDto.SortDirAsc, req.SortDir)

			return []model.Room{{ID: "r1", Name: "Teak"}, {ID: "r2", Name: "Pine"}}, nil
		})

	res, err := svc.GetAll(context.Background(), gDto.QueryParams{Page: 1, Limit: 2, SortBy: "name; DROP TABLE rooms"}, gDto.FilterGroup{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalData)
	assert.Equal(t, 2, res.TotalPage)
	require.Len(t, res.Rooms, 2)
	assert.Equal(t, "r1", res.Rooms[0].ID)
}

func TestRoomService_Get(t *testing.T) {
	tests := []struct {
		name     string
		room     model.Room
		repoErr  error
		wantCode int
	}{
		{name: "found", room: model.Room{ID: "r1", Name: "Teak"}},
		{name: "not found", wantCode: 404},
		{name: "repository error", repoErr: errors.New("database error"), wantCode: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mockRepo, mockCache := newService(t)
			allowCacheWrites(mockCache)

			mockCache.EXPECT().Get(gomock.Any(), "room:get:r1", gomock.Any()).Return(errors.New("miss"))
			mockRepo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(tt.room, tt.repoErr)

			res, err := svc.Get(context.Background(), "r1")
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, failure.GetCode(err))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Teak", res.Name)
		})
	}
}

func TestRoomService_Update(t *testing.T) {
	empty := ""

	svc, mockRepo, mockCache := newService(t)
	allowCacheWrites(mockCache)

	mockRepo.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(true, nil)
	mockRepo.EXPECT().
		Update(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, fields map[string]any, _ gDto.FilterGroup) error {
			value, ok := fields[model.FieldICalURL]
			assert.True(t, ok)
			assert.Nil(t, value)
			assert.Equal(t, "Cedar", fields[model.FieldName])

			return nil
		})
	mockRepo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(model.Room{ID: "r1", Name: "Cedar"}, nil)

	res, err := svc.Update(context.Background(), dto.UpdateRoomRequest{Name: "Cedar", ICalURL: &empty}, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Cedar", res.Name)
	assert.Nil(t, res.ICalURL)
}

func TestRoomService_Update_NotFound(t *testing.T) {
	svc, mockRepo, _ := newService(t)

	mockRepo.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(false, nil)

	_, err := svc.Update(context.Background(), dto.UpdateRoomRequest{Name: "Cedar"}, "missing")
	require.Error(t, err)
	assert.Equal(t, 404, failure.GetCode(err))
}

func TestRoomService_Delete(t *testing.T) {
	tests := []struct {
		name     string
		exist    bool
		delErr   error
		wantCode int
	}{
		{name: "deleted", exist: true},
		{name: "not found", exist: false, wantCode: 404},
		{name: "has bookings", exist: true, delErr: &pq.Error{Code: constant.PqErrorCodeFkViolation}, wantCode: 409},
		{name: "database error", exist: true, delErr: errors.New("database error"), wantCode: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mockRepo, mockCache := newService(t)
			allowCacheWrites(mockCache)

			mockRepo.EXPECT().Exist(gomock.Any(), gomock.Any()).Return(tt.exist, nil)

			if tt.exist {
				mockRepo.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(tt.delErr)
			}

			err := svc.Delete(context.Background(), "r1")
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, failure.GetCode(err))

				return
			}

			assert.NoError(t, err)
		})
	}
}
