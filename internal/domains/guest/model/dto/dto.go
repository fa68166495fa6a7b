package dto

import (
	"strings"

	"lodge/internal/domains/guest/model"
	gDto "lodge/shared/dto"
	gModel "lodge/shared/model"
	"lodge/shared/timezone"

	"github.com/google/uuid"
)

type CreateGuestRequest struct {
	Name  string  `json:"name"            validate:"required,max=100"`
	Phone string  `json:"phone,omitempty" validate:"omitempty,max=30"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

func (c *CreateGuestRequest) ToModel(user string) model.Guest {
	return model.Guest{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
		Email: c.Email,
		Notes: c.Notes,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  user,
			ModifiedBy: user,
		},
	}
}

type UpdateGuestRequest struct {
	Name  string  `db:"name"  json:"name,omitempty"  validate:"omitempty,max=100"`
	Phone *string `db:"phone" json:"phone,omitempty" validate:"omitempty,max=30"`
	Email *string `db:"email" json:"email,omitempty" validate:"omitempty,email,max=255"`
	Notes *string `db:"notes" json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type GuestResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Email      *string `json:"email"`
	Notes      *string `json:"notes"`
	VisitCount int     `json:"visit_count"`
	gDto.Metadata
}

func (r *GuestResponse) FromModel(model model.Guest) {
	r.ID = model.ID
	r.Name = model.Name
	r.Phone = model.Phone
	r.Email = model.Email
	r.Notes = model.Notes
	r.VisitCount = model.VisitCount
	r.Metadata.FromModel(model.Metadata)
}

type GetGuestsResponse struct {
	Guests []GuestResponse `json:"guests"`
}

func (r *GetGuestsResponse) FromModels(models []model.Guest) {
	r.Guests = make([]GuestResponse, len(models))
	for i, mod := range models {
		r.Guests[i].FromModel(mod)
	}
}

// SearchFilter matches guests whose name or phone contains query, case-insensitively.
func SearchFilter(query string) gDto.FilterGroup {
	query = strings.TrimSpace(query)
	if query == "" {
		return gDto.FilterGroup{}
	}

	return gDto.FilterGroup{
		Operator: gDto.FilterGroupOperatorOr,
		Filters: []any{
			gDto.Filter{ArgName: "q_name", Field: model.FieldName, Value: query, Operator: gDto.FilterOperatorILike, Table: model.TableName},
			gDto.Filter{ArgName: "q_phone", Field: model.FieldPhone, Value: query, Operator: gDto.FilterOperatorILike, Table: model.TableName},
		},
	}
}
