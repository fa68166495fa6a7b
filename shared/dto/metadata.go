package dto

import (
	"time"

	"lodge/shared/constant"
	"lodge/shared/model"
	"lodge/shared/timezone"
)

// Metadata is the audit trail rendered on every resource. Timestamps are shown in the
// application timezone; a row that was never modified omits the modified pair.
type Metadata struct {
	CreatedAt  string `json:"created_at"`
	CreatedBy  string `json:"created_by"`
	ModifiedAt string `json:"modified_at,omitempty"`
	ModifiedBy string `json:"modified_by,omitempty"`
}

func (m *Metadata) FromModel(model model.Metadata) {
	m.CreatedAt = timestamp(model.CreatedAt)
	m.CreatedBy = model.CreatedBy
	m.ModifiedAt = timestamp(model.ModifiedAt)
	m.ModifiedBy = model.ModifiedBy
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return constant.Empty
	}

	return timezone.Format(t, constant.DateFormat)
}
