package audit

import (
	"time"

	"github.com/trezcool/academia/core"
)

// Status is the outcome of the administrative action an Entry records.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

var Statuses = []Status{StatusSuccess, StatusWarning, StatusError}

func (s Status) IsValid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Entry is an immutable record of an administrative action attempt.
// Entries are append-only; they are never mutated or deleted.
type Entry struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewEntry contains information needed to record a new Entry.
type NewEntry struct {
	ActorID string
	Action  string
	Status  Status
	Detail  string
}

// Stats aggregates entry counts over a filtered query.
// Total always equals Success + Warnings + Errors.
type Stats struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

type QueryFilter struct {
	Status Status `query:"status"`
	Search string `query:"search"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Status == "" && qf.Search == "" && qf.Limit == 0 && qf.Offset == 0
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if qf.Limit <= 0 || qf.Limit > maxPageSize {
		qf.Limit = defaultPageSize
	}
	if qf.Offset < 0 {
		qf.Offset = 0
	}
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)
