package dto

import (
	"encoding/json"
	"strings"

	"lodge/internal/domains/booking/model"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	gModel "lodge/shared/model"
	"lodge/shared/timezone"

	"github.com/google/uuid"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingUpdated   = "booking.updated"
	EventBookingCancelled = "booking.cancelled"
	EventBookingDeleted   = "booking.deleted"
)

type CreateBookingRequest struct {
	RoomID     string `json:"room_id"               validate:"required,uuid"`
	GuestID    string `json:"guest_id,omitempty"    validate:"omitempty,uuid"`
	GuestName  string `json:"guest_name"            validate:"required_without=GuestID,max=100"`
	GuestPhone string `json:"guest_phone,omitempty" validate:"omitempty,max=30"`
	CheckIn    string `json:"check_in"              validate:"required,datetime=2006-01-02"`
	CheckOut   string `json:"check_out"             validate:"required,datetime=2006-01-02,dateafter=CheckIn"`
}

// Span parses the requested stay. The request is expected to be validated already.
func (c *CreateBookingRequest) Span() (model.DateRange, error) {
	return parseSpan(c.CheckIn, c.CheckOut)
}

func (c *CreateBookingRequest) ToModel(user string, guestID *string, guestName string, span model.DateRange) model.Booking {
	return model.Booking{
		ID:        uuid.NewString(),
		RoomID:    c.RoomID,
		GuestID:   guestID,
		GuestName: guestName,
		CheckIn:   span.Start,
		CheckOut:  span.End,
		Status:    model.StatusConfirmed,
		Source:    model.SourceManual,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

// UpdateBookingRequest is a partial update; empty fields keep their stored value.
type UpdateBookingRequest struct {
	RoomID     string `json:"room_id,omitempty"     validate:"omitempty,uuid"`
	GuestID    string `json:"guest_id,omitempty"    validate:"omitempty,uuid"`
	GuestName  string `json:"guest_name,omitempty"  validate:"omitempty,max=100"`
	GuestPhone string `json:"guest_phone,omitempty" validate:"omitempty,max=30"`
	CheckIn    string `json:"check_in,omitempty"    validate:"omitempty,datetime=2006-01-02"`
	CheckOut   string `json:"check_out,omitempty"   validate:"omitempty,datetime=2006-01-02,dateafter=CheckIn"`
}

// ChangesSpan reports whether the update touches the room or the dates, which requires a new conflict check.
func (u *UpdateBookingRequest) ChangesSpan() bool {
	return u.RoomID != "" || u.CheckIn != "" || u.CheckOut != ""
}

// Target merges the requested room and dates over the stored booking.
func (u *UpdateBookingRequest) Target(current model.Booking) (roomID string, span model.DateRange, err error) {
	roomID = current.RoomID
	if u.RoomID != "" {
		roomID = u.RoomID
	}

	checkIn := timezone.FormatDate(current.CheckIn)
	if u.CheckIn != "" {
		checkIn = u.CheckIn
	}

	checkOut := timezone.FormatDate(current.CheckOut)
	if u.CheckOut != "" {
		checkOut = u.CheckOut
	}

	span, err = parseSpan(checkIn, checkOut)

	return roomID, span, err
}

type ListBookingsRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   validate:"required,datetime=2006-01-02"`
}

type RoomSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

type GuestSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

type BookingResponse struct {
	ID         string          `json:"id"`
	RoomID     string          `json:"room_id"`
	GuestID    *string         `json:"guest_id"`
	GuestName  string          `json:"guest_name"`
	CheckIn    string          `json:"check_in"`
	CheckOut   string          `json:"check_out"`
	Nights     int             `json:"nights"`
	Status     string          `json:"status"`
	Source     string          `json:"source"`
	ExternalID *string         `json:"external_id,omitempty"`
	RawData    json.RawMessage `json:"raw_data,omitempty"`
	Room       *RoomSummary    `json:"room,omitempty"`
	Guest      *GuestSummary   `json:"guest,omitempty"`
	gDto.Metadata
}

func (r *BookingResponse) FromModel(model model.Booking) {
	r.ID = model.ID
	r.RoomID = model.RoomID
	r.GuestID = model.GuestID
	r.GuestName = model.GuestName
	r.CheckIn = timezone.FormatDate(model.CheckIn)
	r.CheckOut = timezone.FormatDate(model.CheckOut)
	r.Nights = model.Span().Nights()
	r.Status = model.Status
	r.Source = model.Source
	r.ExternalID = model.ExternalID
	r.Metadata.FromModel(model.Metadata)

	if model.RawData.Valid {
		r.RawData = json.RawMessage(model.RawData.JSONText)
	}
}

func (r *BookingResponse) FromDetail(detail model.BookingDetail) {
	r.FromModel(detail.Booking)

	r.Room = &RoomSummary{
		ID:    detail.RoomID,
		Name:  detail.RoomName,
		Type:  detail.RoomType,
		Color: detail.RoomColor,
	}

	if detail.GuestID != nil {
		r.Guest = &GuestSummary{
			ID:    *detail.GuestID,
			Name:  detail.GuestName,
			Phone: detail.GuestPhone,
			Email: detail.GuestEmail,
		}
	}
}

func FromDetails(details []model.BookingDetail) []BookingResponse {
	res := make([]BookingResponse, len(details))
	for i, detail := range details {
		res[i].FromDetail(detail)
	}

	return res
}

type AvailabilityRequest struct {
	RoomID    string `json:"room_id"    validate:"required,uuid"`
	CheckIn   string `json:"check_in"   validate:"required,datetime=2006-01-02"`
	CheckOut  string `json:"check_out"  validate:"required,datetime=2006-01-02,dateafter=CheckIn"`
	ExcludeID string `json:"exclude_id" validate:"omitempty,uuid"`
}

func (a *AvailabilityRequest) Span() (model.DateRange, error) {
	return parseSpan(a.CheckIn, a.CheckOut)
}

type AvailabilityResponse struct {
	Available bool              `json:"available"`
	Conflicts []ConflictDetails `json:"conflicts"`
}

func (r *AvailabilityResponse) FromBlocking(blocking []model.Booking) {
	r.Available = len(blocking) == 0
	r.Conflicts = make([]ConflictDetails, len(blocking))

	for i, booking := range blocking {
		r.Conflicts[i] = NewConflictDetails(booking)
	}
}

// ConflictDetails identifies the booking that blocked a write.
type ConflictDetails struct {
	BookingID string `json:"booking_id"`
	RoomID    string `json:"room_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Source    string `json:"source"`
	Status    string `json:"status"`
}

func NewConflictDetails(booking model.Booking) ConflictDetails {
	return ConflictDetails{
		BookingID: booking.ID,
		RoomID:    booking.RoomID,
		CheckIn:   timezone.FormatDate(booking.CheckIn),
		CheckOut:  timezone.FormatDate(booking.CheckOut),
		Source:    booking.Source,
		Status:    booking.Status,
	}
}

// BookingEvent is published on the booking topic after every committed lifecycle change.
type BookingEvent struct {
	Type       string `json:"type"`
	BookingID  string `json:"booking_id"`
	RoomID     string `json:"room_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Status     string `json:"status"`
	Source     string `json:"source"`
	Actor      string `json:"actor"`
	OccurredAt string `json:"occurred_at"`
}

func NewBookingEvent(eventType string, booking model.Booking, actor string) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  booking.ID,
		RoomID:     booking.RoomID,
		CheckIn:    timezone.FormatDate(booking.CheckIn),
		CheckOut:   timezone.FormatDate(booking.CheckOut),
		Status:     booking.Status,
		Source:     booking.Source,
		Actor:      actor,
		OccurredAt: timezone.Format(timezone.Now(), constant.DateFormat),
	}
}

func parseSpan(checkIn, checkOut string) (model.DateRange, error) {
	start, err := timezone.ParseDate(strings.TrimSpace(checkIn))
	if err != nil {
		return model.DateRange{}, err
	}

	end, err := timezone.ParseDate(strings.TrimSpace(checkOut))
	if err != nil {
		return model.DateRange{}, err
	}

	return model.DateRange{Start: start, End: end}, nil
}
