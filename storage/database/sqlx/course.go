package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

const courseTable = "course"

var courseColumns = []string{
	"id", "name", "subject", "description", "price", "teacher_id",
	"schedule_days", "schedule_start", "schedule_end", "meeting_link",
	"start_date", "end_date", "archived", "created_at", "updated_at",
}

type courseRow struct {
	ID            string         `db:"id"`
	Name          null.String    `db:"name"`
	Subject       null.String    `db:"subject"`
	Description   null.String    `db:"description"`
	Price         int64          `db:"price"`
	TeacherID     null.String    `db:"teacher_id"`
	ScheduleDays  pq.StringArray `db:"schedule_days"`
	ScheduleStart null.String    `db:"schedule_start"`
	ScheduleEnd   null.String    `db:"schedule_end"`
	MeetingLink   null.String    `db:"meeting_link"`
	StartDate     null.Time      `db:"start_date"`
	EndDate       null.Time      `db:"end_date"`
	Archived      bool           `db:"archived"`
	CreatedAt     null.Time      `db:"created_at"`
	UpdatedAt     null.Time      `db:"updated_at"`
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) pack(crs course.Course) courseRow {
	return courseRow{
		ID:            crs.ID,
		Name:          null.NewString(crs.Name, crs.Name != ""),
		Subject:       null.NewString(crs.Subject, crs.Subject != ""),
		Description:   null.NewString(crs.Description, crs.Description != ""),
		Price:         crs.Price,
		TeacherID:     null.NewString(crs.TeacherID, crs.TeacherID != ""),
		ScheduleDays:  crs.Schedule.Days,
		ScheduleStart: null.NewString(crs.Schedule.StartTime, crs.Schedule.StartTime != ""),
		ScheduleEnd:   null.NewString(crs.Schedule.EndTime, crs.Schedule.EndTime != ""),
		MeetingLink:   null.NewString(crs.MeetingLink, crs.MeetingLink != ""),
		StartDate:     null.NewTime(crs.StartDate.UTC(), !crs.StartDate.IsZero()),
		EndDate:       null.NewTime(crs.EndDate.UTC(), !crs.EndDate.IsZero()),
		Archived:      crs.Archived,
		CreatedAt:     null.NewTime(crs.CreatedAt.UTC(), !crs.CreatedAt.IsZero()),
		UpdatedAt:     null.NewTime(crs.UpdatedAt.UTC(), !crs.UpdatedAt.IsZero()),
	}
}

func (repo courseRepository) unpack(row courseRow) course.Course {
	return course.Course{
		ID:          row.ID,
		Name:        row.Name.String,
		Subject:     row.Subject.String,
		Description: row.Description.String,
		Price:       row.Price,
		TeacherID:   row.TeacherID.String,
		Schedule: course.Schedule{
			Days:      row.ScheduleDays,
			StartTime: row.ScheduleStart.String,
			EndTime:   row.ScheduleEnd.String,
		},
		MeetingLink: row.MeetingLink.String,
		StartDate:   row.StartDate.Time,
		EndDate:     row.EndDate.Time,
		Archived:    row.Archived,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to course.ErrNotFound
func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	row := repo.pack(crs)
	qry, args, err := psql.Insert(courseTable).
		Columns(courseColumns...).
		Values(row.ID, row.Name, row.Subject, row.Description, row.Price, row.TeacherID,
			row.ScheduleDays, row.ScheduleStart, row.ScheduleEnd, row.MeetingLink,
			row.StartDate, row.EndDate, row.Archived, row.CreatedAt, row.UpdatedAt).
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building course insert")
	}
	if _, err = repo.db.ExecContext(ctx, qry, args...); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	qry, args, err := psql.Select(courseColumns...).From(courseTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building course select")
	}
	var row courseRow
	if err = repo.db.GetContext(ctx, &row, qry, args...); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "getting course")
	}
	return repo.unpack(row), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	q := psql.Select(courseColumns...).From(courseTable)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(sq.Or{
				sq.Expr("name ILIKE ?", val),
				sq.Expr("subject ILIKE ?", val),
			})
		}
		if filter.TeacherID != "" {
			q = q.Where(sq.Eq{"teacher_id": filter.TeacherID})
		}
		if filter.Archived != nil {
			q = q.Where(sq.Eq{"archived": *filter.Archived})
		}
	}

	if ordering != nil {
		q = q.OrderBy(orderBy(ordering))
	}

	qry, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building courses query")
	}
	var rows []courseRow
	if err = repo.db.SelectContext(ctx, &rows, qry, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, repo.unpack(row))
	}
	return courses, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	row := repo.pack(crs)
	qry, args, err := psql.Update(courseTable).
		Set("name", row.Name).
		Set("subject", row.Subject).
		Set("description", row.Description).
		Set("price", row.Price).
		Set("teacher_id", row.TeacherID).
		Set("schedule_days", row.ScheduleDays).
		Set("schedule_start", row.ScheduleStart).
		Set("schedule_end", row.ScheduleEnd).
		Set("meeting_link", row.MeetingLink).
		Set("start_date", row.StartDate).
		Set("end_date", row.EndDate).
		Set("archived", row.Archived).
		Set("updated_at", row.UpdatedAt).
		Where(sq.Eq{"id": crs.ID}).
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building course update")
	}
	res, err := repo.db.ExecContext(ctx, qry, args...)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

func (repo courseRepository) CountCourses(ctx context.Context) (int, error) {
	qry, args, err := psql.Select("COUNT(*)").From(courseTable).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building courses count")
	}
	var count int
	if err = repo.db.GetContext(ctx, &count, qry, args...); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return count, nil
}
