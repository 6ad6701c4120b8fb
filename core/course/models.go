package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Schedule describes the weekly live-session slots of a Course.
type Schedule struct {
	Days      []string `json:"days"`       // e.g. ["Mon", "Wed"]
	StartTime string   `json:"start_time"` // e.g. "17:00"
	EndTime   string   `json:"end_time"`   // e.g. "19:00"
}

type Course struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Price       int64     `json:"price"` // cents
	TeacherID   string    `json:"teacher_id"`
	Schedule    Schedule  `json:"schedule"`
	MeetingLink string    `json:"meeting_link,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Name        string    `json:"name" validate:"required"`
	Subject     string    `json:"subject" validate:"required"`
	Description string    `json:"description"`
	Price       int64     `json:"price" validate:"min=0"`
	TeacherID   string    `json:"teacher_id" validate:"required"`
	Schedule    Schedule  `json:"schedule"`
	MeetingLink string    `json:"meeting_link" validate:"omitempty,url"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Description = core.CleanString(nc.Description)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if !nc.EndDate.IsZero() && nc.EndDate.Before(nc.StartDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date cannot precede start date"})
	}
	return nil
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Price       *int64    `json:"price" validate:"omitempty,min=0"`
	Schedule    *Schedule `json:"schedule"`
	MeetingLink string    `json:"meeting_link" validate:"omitempty,url"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Archived    *bool     `json:"archived"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	uc.Subject = core.CleanString(uc.Subject)
	uc.Description = core.CleanString(uc.Description)
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher"`
	Archived  *bool  `query:"archived"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.TeacherID == "" && qf.Archived == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
