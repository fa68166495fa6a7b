package model

import (
	"time"

	"lodge/shared/model"

	"github.com/jmoiron/sqlx/types"
)

const (
	TableName  = "bookings"
	EntityName = "booking"

	FieldID         = "id"
	FieldRoomID     = "room_id"
	FieldGuestID    = "guest_id"
	FieldGuestName  = "guest_name"
	FieldCheckIn    = "check_in"
	FieldCheckOut   = "check_out"
	FieldStatus     = "status"
	FieldSource     = "source"
	FieldExternalID = "external_id"
	FieldRawData    = "raw_data"
)

const (
	StatusConfirmed = "confirmed"
	StatusConflict  = "conflict"
	StatusCancelled = "cancelled"

	SourceManual   = "manual"
	SourceExternal = "external"
)

// DateRange is a half-open span of calendar dates: the stay occupies [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two spans share at least one night. Back-to-back spans do not overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

func (r DateRange) Valid() bool {
	return r.Start.Before(r.End)
}

func (r DateRange) Nights() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

type Booking struct {
	ID         string             `db:"id"`
	RoomID     string             `db:"room_id"`
	GuestID    *string            `db:"guest_id"`
	GuestName  string             `db:"guest_name"`
	CheckIn    time.Time          `db:"check_in"`
	CheckOut   time.Time          `db:"check_out"`
	Status     string             `db:"status"`
	Source     string             `db:"source"`
	ExternalID *string            `db:"external_id"`
	RawData    types.NullJSONText `db:"raw_data"`
	model.Metadata
}

func (b Booking) Span() DateRange {
	return DateRange{Start: b.CheckIn, End: b.CheckOut}
}

// Blocking reports whether the booking occupies its room. Cancelled bookings free their dates.
func (b Booking) Blocking() bool {
	return b.Status != StatusCancelled
}

// UpsertOutcome is what an external upsert left in the table.
type UpsertOutcome struct {
	Inserted bool   `db:"inserted"`
	Status   string `db:"status"`
}

// BookingDetail is a booking joined with its room and, when still linked, its guest.
type BookingDetail struct {
	Booking
	RoomName   string  `column:"name"  db:"room_name"   table:"rooms"`
	RoomType   string  `column:"type"  db:"room_type"   table:"rooms"`
	RoomColor  string  `column:"color" db:"room_color"  table:"rooms"`
	GuestPhone *string `column:"phone" db:"guest_phone" table:"guests"`
	GuestEmail *string `column:"email" db:"guest_email" table:"guests"`
}

func (BookingDetail) GetJoinQuery() string {
	return "LEFT JOIN rooms ON rooms.id = bookings.room_id LEFT JOIN guests ON guests.id = bookings.guest_id"
}
