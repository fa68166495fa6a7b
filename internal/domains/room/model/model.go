package model

import "lodge/shared/model"

const (
	TableName  = "rooms"
	EntityName = "room"

	FieldID       = "id"
	FieldName     = "name"
	FieldType     = "type"
	FieldCapacity = "capacity"
	FieldColor    = "color"
	FieldICalURL  = "ical_url"
)

const DefaultColor = "#3b82f6"

// Room is a bookable unit. ICalURL points at the external calendar export of the room, if any.
type Room struct {
	ID       string  `db:"id"`
	Name     string  `db:"name"`
	Type     string  `db:"type"`
	Capacity int     `db:"capacity"`
	Color    string  `db:"color"`
	ICalURL  *string `db:"ical_url"`
	model.Metadata
}

func (r Room) HasFeed() bool {
	return r.ICalURL != nil && *r.ICalURL != ""
}
