package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

// summarize populates the student/course summary fields from the other tables.
func (repo *enrollmentRepository) summarize(enr enrollment.Enrollment) enrollment.Enrollment {
	repo.db.user.RLock()
	if stu, ok := repo.db.user.table[enr.StudentID]; ok {
		enr.StudentName = stu.Name
		enr.StudentEmail = stu.Email
	}
	repo.db.user.RUnlock()

	repo.db.course.RLock()
	if crs, ok := repo.db.course.table[enr.CourseID]; ok {
		enr.CourseName = crs.Name
	}
	repo.db.course.RUnlock()
	return enr
}

func (repo *enrollmentRepository) query() []enrollment.Enrollment {
	enrs := make([]enrollment.Enrollment, 0, len(repo.db.enrollment.table))
	for _, enr := range repo.db.enrollment.table {
		enrs = append(enrs, *enr)
	}
	return enrs
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.enrollment.Lock()
	enr.ID = uuid.New().String()
	repo.db.enrollment.table[enr.ID] = &enr
	repo.db.enrollment.Unlock()
	return repo.summarize(enr), nil
}

func (repo *enrollmentRepository) GetEnrollment(ctx context.Context, filter enrollment.GetFilter) (enrollment.Enrollment, error) {
	repo.db.enrollment.RLock()

	if filter.ID != "" {
		if enr, ok := repo.db.enrollment.table[filter.ID]; ok {
			found := *enr
			repo.db.enrollment.RUnlock()
			return repo.summarize(found), nil
		}
	} else if filter.StudentID != "" && filter.CourseID != "" {
		for _, enr := range repo.query() {
			if enr.StudentID == filter.StudentID && enr.CourseID == filter.CourseID {
				repo.db.enrollment.RUnlock()
				return repo.summarize(enr), nil
			}
		}
	}
	repo.db.enrollment.RUnlock()
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering) ([]enrollment.Enrollment, error) {
	repo.db.enrollment.RLock()
	enrs := repo.query()
	repo.db.enrollment.RUnlock()

	for i, enr := range enrs {
		enrs[i] = repo.summarize(enr)
	}

	if filter != nil && !filter.IsEmpty() {
		matched := make([]enrollment.Enrollment, 0, len(enrs))
		for _, enr := range enrs {
			if filter.Search != "" &&
				!(containsFold(enr.StudentName, filter.Search) ||
					containsFold(enr.StudentEmail, filter.Search) ||
					containsFold(enr.CourseName, filter.Search)) {
				continue
			}
			if filter.Status != "" && enr.PaymentStatus != filter.Status {
				continue
			}
			if filter.StudentID != "" && enr.StudentID != filter.StudentID {
				continue
			}
			if filter.CourseID != "" && enr.CourseID != filter.CourseID {
				continue
			}
			matched = append(matched, enr)
		}
		enrs = matched
	}

	sort.Slice(enrs, func(i, j int) bool { return enrs[i].CreatedAt.After(enrs[j].CreatedAt) })
	return enrs, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(ctx context.Context, enr enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.enrollment.Lock()

	orig, ok := repo.db.enrollment.table[enr.ID]
	if !ok {
		repo.db.enrollment.Unlock()
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}

	orig.PaymentStatus = enr.PaymentStatus
	orig.VerifiedAt = enr.VerifiedAt
	orig.UpdatedAt = enr.UpdatedAt
	if enr.Receipt != nil {
		receipt := *enr.Receipt
		orig.Receipt = &receipt
	}
	updated := *orig
	repo.db.enrollment.Unlock()
	return repo.summarize(updated), nil
}

func (repo *enrollmentRepository) CountEnrollments(ctx context.Context) (enrollment.Stats, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()

	var stats enrollment.Stats
	for _, enr := range repo.db.enrollment.table {
		stats.Total++
		switch enr.PaymentStatus {
		case enrollment.PaymentStatusPending:
			stats.Pending++
		case enrollment.PaymentStatusPaid:
			stats.Paid++
		case enrollment.PaymentStatusLater:
			stats.Later++
		}
		if enr.Receipt != nil {
			stats.Receipts++
		}
	}
	return stats, nil
}
