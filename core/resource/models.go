package resource

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Resource is a shared learning material: an uploaded file or an external link,
// owned by a teacher or an admin.
type Resource struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	OwnerID      string    `json:"owner_id"`
	Category     string    `json:"category"`
	FileRef      string    `json:"file_ref,omitempty"`
	ExternalLink string    `json:"external_link,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// NewResource contains information needed to create a new Resource.
// One of FileRef or ExternalLink must be provided.
type NewResource struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	FileRef      string `json:"file_ref"`
	ExternalLink string `json:"external_link" validate:"omitempty,url"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.Category = core.CleanString(nr.Category, true /* lower */)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	if nr.FileRef == "" && nr.ExternalLink == "" {
		return core.NewValidationError(nil,
			core.FieldError{Field: "file_ref", Error: "either a file or an external link is required"})
	}
	return nil
}

// UpdateResource defines what information may be provided to modify an existing Resource.
type UpdateResource struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	FileRef      string `json:"file_ref"`
	ExternalLink string `json:"external_link" validate:"omitempty,url"`
}

func (ur *UpdateResource) Validate(validate *validator.Validate) error {
	ur.Title = core.CleanString(ur.Title)
	ur.Description = core.CleanString(ur.Description)
	ur.Category = core.CleanString(ur.Category, true /* lower */)
	return validate.Struct(ur)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Category string `query:"category"`
	OwnerID  string `query:"owner"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Category == "" && qf.OwnerID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
}
