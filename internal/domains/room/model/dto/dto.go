package dto

import (
	"strings"

	"lodge/internal/domains/room/model"
	"lodge/shared"
	"lodge/shared/constant"
	gDto "lodge/shared/dto"
	gModel "lodge/shared/model"
	"lodge/shared/timezone"

	"github.com/google/uuid"
)

var SortableFields = []string{
	model.TableName + "." + model.FieldName,
	model.TableName + "." + model.FieldType,
	model.TableName + "." + model.FieldCapacity,
	model.TableName + "." + constant.FieldCreatedAt,
}

type CreateRoomRequest struct {
	Name     string  `json:"name"               validate:"required,max=100"`
	Type     string  `json:"type"               validate:"required,max=100"`
	Capacity int     `json:"capacity"           validate:"required,min=1,max=50"`
	Color    string  `json:"color,omitempty"    validate:"omitempty,iscolor"`
	ICalURL  *string `json:"ical_url,omitempty" validate:"omitempty,len=0|ical_url"`
}

func (c *CreateRoomRequest) ToModel(user string) model.Room {
	color := c.Color
	if color == "" {
		color = model.DefaultColor
	}

	return model.Room{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(c.Name),
		Type:     strings.TrimSpace(c.Type),
		Capacity: c.Capacity,
		Color:    color,
		ICalURL:  normalizeFeedURL(c.ICalURL),
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

// UpdateRoomRequest is a partial update. An empty ical_url removes the feed from the room.
type UpdateRoomRequest struct {
	Name     string  `db:"name"     json:"name,omitempty"     validate:"omitempty,max=100"`
	Type     string  `db:"type"     json:"type,omitempty"     validate:"omitempty,max=100"`
	Capacity *int    `db:"capacity" json:"capacity,omitempty" validate:"omitempty,min=1,max=50"`
	Color    string  `db:"color"    json:"color,omitempty"    validate:"omitempty,iscolor"`
	ICalURL  *string `db:"-"        json:"ical_url,omitempty" validate:"omitempty,len=0|ical_url"`
}

// Fields returns the columns to update, including a NULL ical_url when the feed is being removed.
func (u *UpdateRoomRequest) Fields(user string) map[string]any {
	fields := shared.TransformFields(*u, user)

	if u.ICalURL != nil {
		if url := normalizeFeedURL(u.ICalURL); url != nil {
			fields[model.FieldICalURL] = *url
		} else {
			fields[model.FieldICalURL] = nil
		}
	}

	return fields
}

func normalizeFeedURL(raw *string) *string {
	if raw == nil {
		return nil
	}

	url := strings.TrimSpace(*raw)
	if url == "" {
		return nil
	}

	return &url
}

type RoomResponse struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Capacity int     `json:"capacity"`
	Color    string  `json:"color"`
	ICalURL  *string `json:"ical_url"`
	gDto.Metadata
}

func (r *RoomResponse) FromModel(model model.Room) {
	r.ID = model.ID
	r.Name = model.Name
	r.Type = model.Type
	r.Capacity = model.Capacity
	r.Color = model.Color
	r.ICalURL = model.ICalURL
	r.Metadata.FromModel(model.Metadata)
}

type GetRoomsResponse struct {
	Rooms     []RoomResponse `json:"rooms"`
	TotalPage int            `json:"total_page"`
	TotalData int            `json:"total_data"`
}

func (r *GetRoomsResponse) FromModels(models []model.Room, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Rooms = make([]RoomResponse, len(models))
	for i, mod := range models {
		r.Rooms[i].FromModel(mod)
	}
}
