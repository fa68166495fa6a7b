package model

import (
	"lodge/shared/model"
)

const (
	TableName  = "guests"
	EntityName = "guest"

	FieldID         = "id"
	FieldName       = "name"
	FieldPhone      = "phone"
	FieldEmail      = "email"
	FieldNotes      = "notes"
	FieldVisitCount = "visit_count"

	SearchLimit = 20
)

type Guest struct {
	ID         string  `db:"id"`
	Name       string  `db:"name"`
	Phone      string  `db:"phone"`
	Email      *string `db:"email"`
	Notes      *string `db:"notes"`
	VisitCount int     `db:"visit_count"`
	model.Metadata
}
