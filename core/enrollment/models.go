package enrollment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// PaymentStatus is the admin-controlled payment state of an Enrollment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusLater   PaymentStatus = "LATER"
)

var PaymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusLater}

func (s PaymentStatus) IsValid() bool {
	for _, st := range PaymentStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Receipt is the proof-of-payment artifact metadata tied one-to-one with a PAID
// Enrollment. Created at most once.
type Receipt struct {
	Number      string    `json:"receipt_number"`
	IssuedAt    time.Time `json:"issued_at"` // UTC
	ArtifactRef string    `json:"artifact_ref,omitempty"`
}

// Enrollment associates a student with a course and carries payment state.
// StudentID and CourseID are immutable after creation; enrollments are never
// deleted so the audit trail stays intact.
type Enrollment struct {
	ID            string        `json:"id"`
	StudentID     string        `json:"student_id"`
	CourseID      string        `json:"course_id"`
	Amount        int64         `json:"amount"` // cents, captured from the course price at enrollment time
	PaymentStatus PaymentStatus `json:"payment_status"`
	VerifiedAt    time.Time     `json:"verified_at"` // UTC; set only on transition into PAID
	Receipt       *Receipt      `json:"receipt,omitempty"`
	CreatedAt     time.Time     `json:"created_at"` // UTC
	UpdatedAt     time.Time     `json:"updated_at"` // UTC

	// summary fields, only populated on admin queries
	StudentName  string `json:"student_name,omitempty"`
	StudentEmail string `json:"student_email,omitempty"`
	CourseName   string `json:"course_name,omitempty"`
}

// NewEnrollment contains information needed to enroll a student in a course.
type NewEnrollment struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.StudentID = core.CleanString(ne.StudentID)
	ne.CourseID = core.CleanString(ne.CourseID)
	return validate.Struct(ne)
}

type QueryFilter struct {
	Search    string        `query:"search"`
	Status    PaymentStatus `query:"status"`
	StudentID string        `query:"student"`
	CourseID  string        `query:"course"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.StudentID == "" && qf.CourseID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter looks a single Enrollment up by ID or by its student/course pair.
type GetFilter struct {
	ID        string
	StudentID string
	CourseID  string
}

// Stats aggregates enrollment counts for the admin dashboard.
type Stats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Paid     int `json:"paid"`
	Later    int `json:"later"`
	Receipts int `json:"receipts"`
}

type Repository interface {
	CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
	GetEnrollment(ctx context.Context, filter GetFilter) (Enrollment, error)
	// QueryEnrollments applies AND operation on available QueryFilter fields and
	// populates the student/course summary fields.
	// QueryFilter.Search does a case-insensitive match on the student name/email
	// or the course name.
	QueryEnrollments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Enrollment, error)
	UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
	CountEnrollments(ctx context.Context) (Stats, error)
}
