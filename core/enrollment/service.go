package enrollment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("enrollment not found")
	ErrAlreadyEnrolled = errors.New("student is already enrolled in this course")
	ErrInvalidStatus   = errors.New("invalid payment status")
	// ErrPaymentVerified: once a payment has been verified (PAID) it is terminal;
	// regressing to PENDING/LATER would orphan the issued receipt.
	ErrPaymentVerified = errors.New("payment already verified; status can no longer change")
	ErrNotPaid         = errors.New("enrollment payment has not been verified")
)

type Service struct {
	repo      Repository
	usrRepo   user.Repository
	crsRepo   course.Repository
	auditSvc  *audit.Service
	renderer  core.ReceiptRenderer
	artifacts core.ArtifactStore
	mailSvc   core.EmailService
	logger    core.Logger

	// per-enrollment locks serialize concurrent status changes on the same id
	// so two admins acting at once cannot lose updates.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(
	repo Repository,
	usrRepo user.Repository,
	crsRepo course.Repository,
	auditSvc *audit.Service,
	renderer core.ReceiptRenderer,
	artifacts core.ArtifactStore,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		usrRepo:   usrRepo,
		crsRepo:   crsRepo,
		auditSvc:  auditSvc,
		renderer:  renderer,
		artifacts: artifacts,
		mailSvc:   mailSvc,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (svc *Service) lock(id string) *sync.Mutex {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	l, ok := svc.locks[id]
	if !ok {
		l = new(sync.Mutex)
		svc.locks[id] = l
	}
	return l
}

// Enroll creates an Enrollment with status PENDING, capturing the course price.
// A student can only enroll once per course.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: ne.StudentID})
	if err != nil {
		if err == user.ErrNotFound {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Enrollment{}, pkgerrors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "user is not a student"})
	}

	crs, err := svc.crsRepo.GetCourse(ctx, ne.CourseID)
	if err != nil {
		if err == course.ErrNotFound {
			return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return Enrollment{}, pkgerrors.Wrap(err, "finding course")
	}
	if crs.Archived {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "course is archived"})
	}

	if _, err = svc.repo.GetEnrollment(ctx, GetFilter{StudentID: ne.StudentID, CourseID: ne.CourseID}); err == nil {
		return Enrollment{}, core.NewValidationError(ErrAlreadyEnrolled)
	} else if err != ErrNotFound {
		return Enrollment{}, pkgerrors.Wrap(err, "checking enrollment uniqueness")
	}

	now := time.Now().UTC()
	enr := Enrollment{
		StudentID:     ne.StudentID,
		CourseID:      ne.CourseID,
		Amount:        crs.Price,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateEnrollment(ctx, enr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Enrollment, error) {
	if filter != nil {
		filter.Clean()
	}
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.repo.QueryEnrollments(ctx, filter, ordering)
}

func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	return svc.repo.CountEnrollments(ctx)
}

// SetPaymentStatus validates and applies an admin-requested payment status
// change. Every attempt - including failed ones - is recorded as an audit
// entry before the outcome is surfaced to the caller.
//
// PAID is terminal: PENDING and LATER may move freely between each other and
// into PAID, but a verified payment can no longer change status. PAID -> PAID
// is an idempotent no-op that retries receipt issuance if the receipt is
// missing.
func (svc *Service) SetPaymentStatus(ctx context.Context, id string, status PaymentStatus, actor user.User) (Enrollment, error) {
	action := fmt.Sprintf("set payment status of enrollment %s to %s", id, status)

	if !status.IsValid() {
		svc.record(ctx, actor, action, audit.StatusError, ErrInvalidStatus.Error())
		return Enrollment{}, core.NewValidationError(ErrInvalidStatus,
			core.FieldError{Field: "status", Error: fmt.Sprintf("must be one of %v", PaymentStatuses)})
	}

	l := svc.lock(id)
	l.Lock()
	defer l.Unlock()

	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
	if err != nil {
		if err == ErrNotFound {
			svc.record(ctx, actor, action, audit.StatusError, err.Error())
			return Enrollment{}, err
		}
		svc.record(ctx, actor, action, audit.StatusError, err.Error())
		return Enrollment{}, pkgerrors.Wrap(err, "finding enrollment")
	}

	if enr.PaymentStatus == PaymentStatusPaid {
		if status != PaymentStatusPaid {
			svc.record(ctx, actor, action, audit.StatusError, ErrPaymentVerified.Error())
			return Enrollment{}, core.NewValidationError(ErrPaymentVerified,
				core.FieldError{Field: "status", Error: ErrPaymentVerified.Error()})
		}
		// idempotent re-verification; retry issuance if it failed previously
		enr = svc.issueReceipt(ctx, enr, actor)
		svc.record(ctx, actor, action, audit.StatusSuccess, "payment already verified")
		return enr, nil
	}

	now := time.Now().UTC()
	enr.PaymentStatus = status
	enr.UpdatedAt = now
	if status == PaymentStatusPaid && enr.VerifiedAt.IsZero() {
		enr.VerifiedAt = now
	}

	if enr, err = svc.repo.UpdateEnrollment(ctx, enr); err != nil {
		svc.record(ctx, actor, action, audit.StatusError, err.Error())
		return Enrollment{}, pkgerrors.Wrap(err, "updating enrollment")
	}

	if status == PaymentStatusPaid {
		enr = svc.issueReceipt(ctx, enr, actor)
	}

	svc.record(ctx, actor, action, audit.StatusSuccess, "")
	return enr, nil
}

// IssueReceipt retries receipt issuance for a PAID enrollment whose previous
// issuance failed. It is a no-op returning the existing state when the receipt
// is already present.
func (svc *Service) IssueReceipt(ctx context.Context, id string, actor user.User) (Enrollment, error) {
	action := fmt.Sprintf("issue receipt for enrollment %s", id)

	l := svc.lock(id)
	l.Lock()
	defer l.Unlock()

	enr, err := svc.repo.GetEnrollment(ctx, GetFilter{ID: id})
	if err != nil {
		svc.record(ctx, actor, action, audit.StatusError, err.Error())
		if err == ErrNotFound {
			return Enrollment{}, err
		}
		return Enrollment{}, pkgerrors.Wrap(err, "finding enrollment")
	}
	if enr.PaymentStatus != PaymentStatusPaid {
		svc.record(ctx, actor, action, audit.StatusError, ErrNotPaid.Error())
		return Enrollment{}, core.NewValidationError(ErrNotPaid)
	}
	if enr.Receipt != nil {
		svc.record(ctx, actor, action, audit.StatusSuccess, "receipt already issued")
		return enr, nil
	}

	enr = svc.issueReceipt(ctx, enr, actor)
	if enr.Receipt == nil {
		return enr, core.NewValidationError(errors.New("receipt issuance failed; please retry"))
	}
	svc.record(ctx, actor, action, audit.StatusSuccess, "")
	return enr, nil
}

func (svc *Service) record(ctx context.Context, actor user.User, action string, status audit.Status, detail string) {
	svc.auditSvc.Record(ctx, audit.NewEntry{
		ActorID: actor.ID,
		Action:  action,
		Status:  status,
		Detail:  detail,
	})
}
