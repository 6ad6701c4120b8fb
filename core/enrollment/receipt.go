package enrollment

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/user"
)

// newReceiptNumber generates a unique, human-readable receipt number,
// e.g. "RCT-20260901-1B9D6BCD".
func newReceiptNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("RCT-%s-%s", now.Format("20060102"), suffix)
}

// issueReceipt renders, stores and attaches the proof-of-payment artifact for
// a PAID enrollment, exactly once. Failures are reported as audit warnings and
// never revert the already-committed payment status; the returned Enrollment
// is unchanged in that case so issuance can be retried.
func (svc *Service) issueReceipt(ctx context.Context, enr Enrollment, actor user.User) Enrollment {
	if enr.Receipt != nil {
		return enr // already issued; do not re-render
	}
	action := fmt.Sprintf("issue receipt for enrollment %s", enr.ID)

	stu, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: enr.StudentID})
	if err != nil {
		svc.warnIssuance(ctx, actor, action, pkgerrors.Wrap(err, "finding student"))
		return enr
	}
	crs, err := svc.crsRepo.GetCourse(ctx, enr.CourseID)
	if err != nil {
		svc.warnIssuance(ctx, actor, action, pkgerrors.Wrap(err, "finding course"))
		return enr
	}

	now := time.Now().UTC()
	data := core.ReceiptData{
		Number:        newReceiptNumber(now),
		StudentName:   stu.Name,
		StudentEmail:  stu.Email,
		CourseName:    crs.Name,
		CourseSubject: crs.Subject,
		Amount:        enr.Amount,
		VerifiedAt:    enr.VerifiedAt,
		IssuedAt:      now,
	}

	artifact, err := svc.renderer.Render(ctx, data)
	if err != nil {
		svc.warnIssuance(ctx, actor, action, pkgerrors.Wrap(err, "rendering receipt"))
		return enr
	}
	ref, err := svc.artifacts.Save(ctx, data.Number+".pdf", artifact)
	if err != nil {
		svc.warnIssuance(ctx, actor, action, pkgerrors.Wrap(err, "storing receipt"))
		return enr
	}

	updated := enr
	updated.Receipt = &Receipt{
		Number:      data.Number,
		IssuedAt:    now,
		ArtifactRef: ref,
	}
	updated.UpdatedAt = now
	if updated, err = svc.repo.UpdateEnrollment(ctx, updated); err != nil {
		svc.warnIssuance(ctx, actor, action, pkgerrors.Wrap(err, "attaching receipt"))
		return enr
	}

	svc.emailReceipt(stu, crs.Name, data.Number, artifact)
	return updated
}

func (svc *Service) warnIssuance(ctx context.Context, actor user.User, action string, err error) {
	svc.logger.Warn("receipt issuance failed", err)
	svc.record(ctx, actor, action, audit.StatusWarning, err.Error())
}

func (svc *Service) emailReceipt(stu user.User, courseName, number string, artifact []byte) {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: stu.Name, Address: stu.Email}},
		Subject: "Payment Receipt - " + courseName,
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nYour payment for %q has been verified. "+
				"Your receipt %s is attached.\n\nThank you!",
			stu.Name, courseName, number,
		),
	}
	if err := msg.Attach(bytes.NewReader(artifact), number+".pdf", "application/pdf"); err != nil {
		svc.logger.Error("attaching receipt to email", err)
		return
	}
	svc.mailSvc.SendMessages(msg)
}
