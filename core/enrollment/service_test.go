package enrollment_test

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	"github.com/trezcool/academia/services/filestore"
	logsvc "github.com/trezcool/academia/services/logger"
	receiptsvc "github.com/trezcool/academia/services/receipt"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
)

type testEnv struct {
	svc       *enrollment.Service
	usrRepo   user.Repository
	crsRepo   course.Repository
	enrRepo   enrollment.Repository
	auditRepo audit.Repository
	artifacts *filestore.MemStore
	admin     user.User
	student   user.User
	course    course.Course
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	crsRepo := dummydb.NewCourseRepository(db)
	enrRepo := dummydb.NewEnrollmentRepository(db)
	auditRepo := dummydb.NewAuditRepository(db)

	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	artifacts := filestore.NewMemStore()
	svc := enrollment.NewService(
		enrRepo, usrRepo, crsRepo,
		audit.NewService(auditRepo, logger),
		receiptsvc.NewDummyRenderer(), artifacts,
		emailsvc.NewConsoleServiceMock(), logger,
	)

	ctx := context.Background()
	now := time.Now().UTC()
	admin, err := usrRepo.CreateUser(ctx, user.User{
		Name: "Admin", Username: "admin", Email: "admin@test.cd",
		Roles: user.AdminRoles, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	student, err := usrRepo.CreateUser(ctx, user.User{
		Name: "Student", Username: "student", Email: "student@test.cd",
		Roles: user.StudentRoles, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	crs, err := crsRepo.CreateCourse(ctx, course.Course{
		Name: "Calculus I", Subject: "Mathematics", Price: 15000,
		TeacherID: admin.ID, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}

	return &testEnv{
		svc:       svc,
		usrRepo:   usrRepo,
		crsRepo:   crsRepo,
		enrRepo:   enrRepo,
		auditRepo: auditRepo,
		artifacts: artifacts,
		admin:     admin,
		student:   student,
		course:    crs,
	}
}

func (env *testEnv) enroll(t *testing.T) enrollment.Enrollment {
	t.Helper()
	enr, err := env.svc.Enroll(context.Background(), enrollment.NewEnrollment{
		StudentID: env.student.ID,
		CourseID:  env.course.ID,
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

func (env *testEnv) auditEntries(t *testing.T) ([]audit.Entry, audit.Stats) {
	t.Helper()
	ctx := context.Background()
	filter := new(audit.QueryFilter)
	filter.Clean()
	entries, err := env.auditRepo.QueryEntries(ctx, filter, nil)
	if err != nil {
		t.Fatalf("QueryEntries() failed: %v", err)
	}
	stats, err := env.auditRepo.CountEntries(ctx, filter)
	if err != nil {
		t.Fatalf("CountEntries() failed: %v", err)
	}
	return entries, stats
}

func TestService_Enroll(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	enr := env.enroll(t)
	if enr.PaymentStatus != enrollment.PaymentStatusPending {
		t.Errorf("PaymentStatus = %v; want %v", enr.PaymentStatus, enrollment.PaymentStatusPending)
	}
	if enr.Amount != env.course.Price {
		t.Errorf("Amount = %v; want course price %v", enr.Amount, env.course.Price)
	}

	// one enrollment per student/course pair
	_, err := env.svc.Enroll(ctx, enrollment.NewEnrollment{StudentID: env.student.ID, CourseID: env.course.ID})
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Enroll() error = %v; want ValidationError", err)
	}
	if vErr.Error() != enrollment.ErrAlreadyEnrolled.Error() {
		t.Errorf("Enroll() error = %v; want %v", vErr, enrollment.ErrAlreadyEnrolled)
	}

	// non-students cannot enroll
	if _, err = env.svc.Enroll(ctx, enrollment.NewEnrollment{StudentID: env.admin.ID, CourseID: env.course.ID}); err == nil {
		t.Error("Enroll() expected error for non-student")
	}
}

func TestService_SetPaymentStatus_verifiesPayment(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	enr := env.enroll(t)

	got, err := env.svc.SetPaymentStatus(ctx, enr.ID, enrollment.PaymentStatusPaid, env.admin)
	if err != nil {
		t.Fatalf("SetPaymentStatus() failed: %v", err)
	}
	if got.PaymentStatus != enrollment.PaymentStatusPaid {
		t.Errorf("PaymentStatus = %v; want %v", got.PaymentStatus, enrollment.PaymentStatusPaid)
	}
	if got.VerifiedAt.IsZero() {
		t.Error("VerifiedAt must be set on PAID")
	}
	if got.Receipt == nil {
		t.Fatal("receipt must be issued on PAID")
	}
	if got.Receipt.Number == "" || got.Receipt.IssuedAt.IsZero() || got.Receipt.ArtifactRef == "" {
		t.Errorf("incomplete receipt: %+v", got.Receipt)
	}
	if env.artifacts.Len() != 1 {
		t.Errorf("artifacts.Len() = %v; want 1", env.artifacts.Len())
	}

	_, stats := env.auditEntries(t)
	want := audit.Stats{Total: 1, Success: 1}
	if stats != want {
		t.Errorf("audit stats = %+v; want %+v", stats, want)
	}
}

func TestService_SetPaymentStatus_noReceiptBeforePaid(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	enr := env.enroll(t)

	got, err := env.svc.SetPaymentStatus(ctx, enr.ID, enrollment.PaymentStatusLater, env.admin)
	if err != nil {
		t.Fatalf("SetPaymentStatus() failed: %v", err)
	}
	if got.Receipt != nil {
		t.Error("receipt must only exist for PAID enrollments")
	}
	if !got.VerifiedAt.IsZero() {
		t.Error("VerifiedAt must only be set on PAID")
	}
	if env.artifacts.Len() != 0 {
		t.Errorf("artifacts.Len() = %v; want 0", env.artifacts.Len())
	}
}

func TestService_SetPaymentStatus_paidIsIdempotent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	enr := env.enroll(t)

	first, err := env.svc.SetPaymentStatus(ctx, enr.ID, enrollment.PaymentStatusPaid, env.admin)
	if err != nil {
		t.Fatalf("SetPaymentStatus() failed: %v", err)
	}
	second, err := env.svc.SetPaymentStatus(ctx, enr.ID, enrollment.PaymentStatusPaid, env.admin)
	if err != nil {
		t.Fatalf("SetPaymentStatus() re-verification failed: %v", err)
	}

	if second.Receipt == nil || second.Receipt.Number != first.Receipt.Number {
		t.Errorf("receipt changed on re-verification; got %+v, want %+v", second.Receipt, first.Receipt)
	}
	if !second.VerifiedAt.Equal(first.VerifiedAt) {
		t.Errorf("VerifiedAt changed on re-verification; got %v, want %v", second.VerifiedAt, first.VerifiedAt)
	}
	if env.artifacts.Len() != 1 {
		t.Errorf("artifacts.Len() = %v; want exactly 1 artifact", env.artifacts.Len())
	}
}

func TestService_SetPaymentStatus_paidIsTerminal(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	enr := env.enroll(t)

	if _, err := env.svc.SetPaymentStatus(ctx, enr.ID, enrollment.PaymentStatusPaid, env.admin); err != nil {
		t.Fatalf("SetPaymentStatus() failed: %v", err)
	}

	for _, status := range []enrollment.PaymentStatus{enrollment.PaymentStatusPending, enrollment.PaymentStatusLater} {
		_, err := env.svc.SetPaymentStatus(ctx, enr.ID, status, env.admin)
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("SetPaymentStatus(%v) error = %v; want ValidationError", status, err)
		}
		refreshed, err := env.enrRepo.GetEnrollment(ctx, enrollment.GetFilter{ID: enr.ID})
		if err != nil {
			t.Fatalf("GetEnrollment() failed: %v", err)
		}
		if refreshed.PaymentStatus != enrollment.PaymentStatusPaid {
			t.Errorf("PaymentStatus = %v; PAID must not regress to %v", refreshed.PaymentStatus, status)
		}
	}
}

func TestService_SetPaymentStatus_recordsFailedAttempts(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	enr := env.enroll(t)

	// invalid status leaves the enrollment untouched
	if _, err := env.svc.SetPaymentStatus(ctx, enr.ID, "LOL", env.admin); err == nil {
		t.Error("SetPaymentStatus() expected error for invalid status")
	}
	refreshed, err := env.enrRepo.GetEnrollment(ctx, enrollment.GetFilter{ID: enr.ID})
	if err != nil {
		t.Fatalf("GetEnrollment() failed: %v", err)
	}
	if refreshed.PaymentStatus != enrollment.PaymentStatusPending {
		t.Errorf("PaymentStatus = %v; must remain PENDING after a failed attempt", refreshed.PaymentStatus)
	}

	// unknown enrollment
	if _, err = env.svc.SetPaymentStatus(ctx, "404", enrollment.PaymentStatusPaid, env.admin); err != enrollment.ErrNotFound {
		t.Errorf("SetPaymentStatus() error = %v; want %v", err, enrollment.ErrNotFound)
	}
	if env.artifacts.Len() != 0 {
		t.Errorf("artifacts.Len() = %v; want 0", env.artifacts.Len())
	}

	// both attempts are on the record
	entries, stats := env.auditEntries(t)
	want := audit.Stats{Total: 2, Errors: 2}
	if stats != want {
		t.Fatalf("audit stats = %+v; want %+v", stats, want)
	}
	for _, entry := range entries {
		if entry.ActorID != env.admin.ID {
			t.Errorf("ActorID = %v; want acting admin %v", entry.ActorID, env.admin.ID)
		}
		if entry.Detail == "" {
			t.Error("failed attempts must record the failure detail")
		}
	}
}

func TestService_IssueReceipt(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	enr := env.enroll(t)

	// unpaid enrollments have no receipt to issue
	if _, err := env.svc.IssueReceipt(ctx, enr.ID, env.admin); err == nil {
		t.Error("IssueReceipt() expected error for unpaid enrollment")
	}

	if _, err := env.svc.SetPaymentStatus(ctx, enr.ID, enrollment.PaymentStatusPaid, env.admin); err != nil {
		t.Fatalf("SetPaymentStatus() failed: %v", err)
	}

	// a retry after successful issuance is a no-op
	got, err := env.svc.IssueReceipt(ctx, enr.ID, env.admin)
	if err != nil {
		t.Fatalf("IssueReceipt() failed: %v", err)
	}
	if got.Receipt == nil {
		t.Fatal("expected existing receipt")
	}
	if env.artifacts.Len() != 1 {
		t.Errorf("artifacts.Len() = %v; want 1 (no re-issuance)", env.artifacts.Len())
	}

	if _, err = env.svc.IssueReceipt(ctx, "404", env.admin); err != enrollment.ErrNotFound {
		t.Errorf("IssueReceipt() error = %v; want %v", err, enrollment.ErrNotFound)
	}
}

func TestService_receiptSurvivesRendererFailure(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	enr := env.enroll(t)

	// make issuance fail on the first verification
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	failing := enrollment.NewService(
		env.enrRepo, env.usrRepo, env.crsRepo,
		audit.NewService(env.auditRepo, logger),
		failingRenderer{}, env.artifacts,
		emailsvc.NewConsoleServiceMock(), logger,
	)

	got, err := failing.SetPaymentStatus(ctx, enr.ID, enrollment.PaymentStatusPaid, env.admin)
	if err != nil {
		t.Fatalf("SetPaymentStatus() failed: %v", err)
	}
	if got.PaymentStatus != enrollment.PaymentStatusPaid {
		t.Error("payment verification must not be rolled back by a failed issuance")
	}
	if got.Receipt != nil {
		t.Error("no receipt expected when rendering fails")
	}

	// the failure shows up as a warning next to the successful verification
	_, stats := env.auditEntries(t)
	if stats.Warnings != 1 || stats.Success != 1 {
		t.Errorf("audit stats = %+v; want 1 warning and 1 success", stats)
	}

	// re-verifying through the healthy service retries issuance
	verifiedAt := enrGetVerifiedAt(t, env, enr.ID)
	got, err = env.svc.SetPaymentStatus(ctx, enr.ID, enrollment.PaymentStatusPaid, env.admin)
	if err != nil {
		t.Fatalf("SetPaymentStatus() retry failed: %v", err)
	}
	if got.Receipt == nil {
		t.Fatal("receipt must be issued on retry")
	}
	if !got.VerifiedAt.Equal(verifiedAt) {
		t.Error("VerifiedAt must be preserved across issuance retries")
	}
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, core.ReceiptData) ([]byte, error) {
	return nil, errors.New("chromium not found")
}

func enrGetVerifiedAt(t *testing.T, env *testEnv, id string) time.Time {
	t.Helper()
	enr, err := env.enrRepo.GetEnrollment(context.Background(), enrollment.GetFilter{ID: id})
	if err != nil {
		t.Fatalf("GetEnrollment() failed: %v", err)
	}
	return enr.VerifiedAt
}
