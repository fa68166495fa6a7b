package dto

import (
	"time"

	"lodge/infras/ical"
	bookingModel "lodge/internal/domains/booking/model"
	roomModel "lodge/internal/domains/room/model"
	"lodge/internal/domains/sync/model"
	"lodge/shared/constant"
	gModel "lodge/shared/model"
	"lodge/shared/timezone"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// RoomResult reports one room's pass. Error is set when the feed could not be fetched, in which case
// the counters are zero.
type RoomResult struct {
	RoomID        string `json:"room_id"`
	RoomName      string `json:"room_name"`
	SyncedCount   int    `json:"synced_count"`
	Conflicts     int    `json:"conflicts"`
	EventFailures int    `json:"event_failures"`
	Error         string `json:"error,omitempty"`
}

func NewRoomResult(room roomModel.Room) RoomResult {
	return RoomResult{RoomID: room.ID, RoomName: room.Name}
}

func (r RoomResult) Failed() bool {
	return r.Error != constant.Empty
}

type SyncResponse struct {
	Success     bool         `json:"success"`
	SyncedCount int          `json:"synced_count"`
	Conflicts   int          `json:"conflicts"`
	FailedRooms int          `json:"failed_rooms"`
	Rooms       []RoomResult `json:"rooms"`
}

// Summarize sums the rooms that synced. Failed rooms are listed but excluded from the totals.
func (r *SyncResponse) Summarize(rooms []RoomResult) {
	r.Success = true
	r.Rooms = rooms

	for _, room := range rooms {
		if room.Failed() {
			r.FailedRooms++

			continue
		}

		r.SyncedCount += room.SyncedCount
		r.Conflicts += room.Conflicts
	}
}

// SyncEvent is published on the sync topic after every pass.
type SyncEvent struct {
	Type        string `json:"type"`
	Trigger     string `json:"trigger"`
	SyncedCount int    `json:"synced_count"`
	Conflicts   int    `json:"conflicts"`
	FailedRooms int    `json:"failed_rooms"`
	Rooms       int    `json:"rooms"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
}

func NewSyncEvent(trigger string, res SyncResponse, startedAt time.Time) SyncEvent {
	return SyncEvent{
		Type:        model.EventSyncCompleted,
		Trigger:     trigger,
		SyncedCount: res.SyncedCount,
		Conflicts:   res.Conflicts,
		FailedRooms: res.FailedRooms,
		Rooms:       len(res.Rooms),
		StartedAt:   timezone.Format(startedAt, constant.DateFormat),
		FinishedAt:  timezone.Format(timezone.Now(), constant.DateFormat),
	}
}

// ExternalBooking maps a feed event onto the booking row it is upserted as. Status is decided by the caller.
func ExternalBooking(roomID string, event ical.Event, defaultGuestName string) bookingModel.Booking {
	guestName := event.Summary
	if guestName == constant.Empty {
		guestName = defaultGuestName
	}

	externalID := event.ExternalID
	now := timezone.Now()

	return bookingModel.Booking{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		GuestName:  guestName,
		CheckIn:    event.Start,
		CheckOut:   event.End,
		Status:     bookingModel.StatusConfirmed,
		Source:     bookingModel.SourceExternal,
		ExternalID: &externalID,
		RawData: types.NullJSONText{
			JSONText: types.JSONText(event.Raw),
			Valid:    len(event.Raw) > 0,
		},
		Metadata: gModel.Metadata{
			CreatedAt:  now,
			ModifiedAt: now,
			CreatedBy:  model.Actor,
			ModifiedBy: model.Actor,
		},
	}
}
