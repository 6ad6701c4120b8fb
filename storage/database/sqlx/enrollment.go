package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/enrollment"
)

const enrollmentTable = "enrollment"

var enrollmentColumns = []string{
	"e.id", "e.student_id", "e.course_id", "e.amount", "e.payment_status",
	"e.verified_at", "e.receipt_number", "e.receipt_issued_at", "e.receipt_artifact_ref",
	"e.created_at", "e.updated_at",
	`u.name AS "student_name"`, `u.email AS "student_email"`, `c.name AS "course_name"`,
}

type enrollmentRow struct {
	ID                 string      `db:"id"`
	StudentID          string      `db:"student_id"`
	CourseID           string      `db:"course_id"`
	Amount             int64       `db:"amount"`
	PaymentStatus      string      `db:"payment_status"`
	VerifiedAt         null.Time   `db:"verified_at"`
	ReceiptNumber      null.String `db:"receipt_number"`
	ReceiptIssuedAt    null.Time   `db:"receipt_issued_at"`
	ReceiptArtifactRef null.String `db:"receipt_artifact_ref"`
	CreatedAt          null.Time   `db:"created_at"`
	UpdatedAt          null.Time   `db:"updated_at"`
	StudentName        null.String `db:"student_name"`
	StudentEmail       null.String `db:"student_email"`
	CourseName         null.String `db:"course_name"`
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) unpack(row enrollmentRow) enrollment.Enrollment {
	enr := enrollment.Enrollment{
		ID:            row.ID,
		StudentID:     row.StudentID,
		CourseID:      row.CourseID,
		Amount:        row.Amount,
		PaymentStatus: enrollment.PaymentStatus(row.PaymentStatus),
		VerifiedAt:    row.VerifiedAt.Time,
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
		StudentName:   row.StudentName.String,
		StudentEmail:  row.StudentEmail.String,
		CourseName:    row.CourseName.String,
	}
	if row.ReceiptNumber.Valid {
		enr.Receipt = &enrollment.Receipt{
			Number:      row.ReceiptNumber.String,
			IssuedAt:    row.ReceiptIssuedAt.Time,
			ArtifactRef: row.ReceiptArtifactRef.String,
		}
	}
	return enr
}

// trapNoRowsErr maps psql "no rows" err to enrollment.ErrNotFound
func (repo enrollmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return enrollment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// selectQuery joins the student and course rows to populate the summary fields.
func (repo enrollmentRepository) selectQuery() sq.SelectBuilder {
	return psql.Select(enrollmentColumns...).
		From(enrollmentTable + " e").
		LeftJoin(`"user" u ON u.id = e.student_id`).
		LeftJoin("course c ON c.id = e.course_id")
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	enr.ID = uuid.New().String()
	qry, args, err := psql.Insert(enrollmentTable).
		Columns("id", "student_id", "course_id", "amount", "payment_status", "created_at", "updated_at").
		Values(enr.ID, enr.StudentID, enr.CourseID, enr.Amount, string(enr.PaymentStatus),
			null.NewTime(enr.CreatedAt.UTC(), !enr.CreatedAt.IsZero()),
			null.NewTime(enr.UpdatedAt.UTC(), !enr.UpdatedAt.IsZero())).
		ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building enrollment insert")
	}
	if _, err = repo.db.ExecContext(ctx, qry, args...); err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.GetEnrollment(ctx, enrollment.GetFilter{ID: enr.ID})
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, filter enrollment.GetFilter) (enrollment.Enrollment, error) {
	var pred sq.Sqlizer
	switch {
	case filter.ID != "":
		pred = sq.Eq{"e.id": filter.ID}
	case filter.StudentID != "" && filter.CourseID != "":
		pred = sq.Eq{"e.student_id": filter.StudentID, "e.course_id": filter.CourseID}
	default:
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}

	qry, args, err := repo.selectQuery().Where(pred).Limit(1).ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building enrollment select")
	}
	var row enrollmentRow
	if err = repo.db.GetContext(ctx, &row, qry, args...); err != nil {
		return enrollment.Enrollment{}, repo.trapNoRowsErr(err, "getting enrollment")
	}
	return repo.unpack(row), nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering) ([]enrollment.Enrollment, error) {
	q := repo.selectQuery()

	if filter != nil {
		// enrollments whose student name/email or course name matches the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(sq.Or{
				sq.Expr("u.name ILIKE ?", val),
				sq.Expr("u.email ILIKE ?", val),
				sq.Expr("c.name ILIKE ?", val),
			})
		}
		if filter.Status != "" {
			q = q.Where(sq.Eq{"e.payment_status": string(filter.Status)})
		}
		if filter.StudentID != "" {
			q = q.Where(sq.Eq{"e.student_id": filter.StudentID})
		}
		if filter.CourseID != "" {
			q = q.Where(sq.Eq{"e.course_id": filter.CourseID})
		}
	}

	if ordering != nil {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, "e."+ord.String())
		}
		q = q.OrderBy(orderList...)
	}

	qry, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building enrollments query")
	}
	var rows []enrollmentRow
	if err = repo.db.SelectContext(ctx, &rows, qry, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrs = append(enrs, repo.unpack(row))
	}
	return enrs, nil
}

func (repo enrollmentRepository) UpdateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	q := psql.Update(enrollmentTable).
		Set("payment_status", string(enr.PaymentStatus)).
		Set("verified_at", null.NewTime(enr.VerifiedAt.UTC(), !enr.VerifiedAt.IsZero())).
		Set("updated_at", null.NewTime(enr.UpdatedAt.UTC(), !enr.UpdatedAt.IsZero())).
		Where(sq.Eq{"id": enr.ID})
	if enr.Receipt != nil {
		q = q.Set("receipt_number", enr.Receipt.Number).
			Set("receipt_issued_at", enr.Receipt.IssuedAt.UTC()).
			Set("receipt_artifact_ref", null.NewString(enr.Receipt.ArtifactRef, enr.Receipt.ArtifactRef != ""))
	}

	qry, args, err := q.ToSql()
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "building enrollment update")
	}
	res, err := repo.db.ExecContext(ctx, qry, args...)
	if err != nil {
		return enrollment.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return repo.GetEnrollment(ctx, enrollment.GetFilter{ID: enr.ID})
}

func (repo enrollmentRepository) CountEnrollments(ctx context.Context) (enrollment.Stats, error) {
	qry, args, err := psql.Select(
		`COUNT(*) AS "total"`,
		`COUNT(*) FILTER (WHERE payment_status = 'PENDING') AS "pending"`,
		`COUNT(*) FILTER (WHERE payment_status = 'PAID') AS "paid"`,
		`COUNT(*) FILTER (WHERE payment_status = 'LATER') AS "later"`,
		`COUNT(receipt_number) AS "receipts"`,
	).From(enrollmentTable).ToSql()
	if err != nil {
		return enrollment.Stats{}, errors.Wrap(err, "building enrollments count")
	}
	var stats enrollment.Stats
	if err = repo.db.GetContext(ctx, &stats, qry, args...); err != nil {
		return enrollment.Stats{}, errors.Wrap(err, "counting enrollments")
	}
	return stats, nil
}
