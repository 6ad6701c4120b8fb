package course

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound = errors.New("course not found")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Course.Name or Course.Subject.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		CountCourses(ctx context.Context) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Name:        nc.Name,
		Subject:     nc.Subject,
		Description: nc.Description,
		Price:       nc.Price,
		TeacherID:   nc.TeacherID,
		Schedule:    nc.Schedule,
		MeetingLink: nc.MeetingLink,
		StartDate:   nc.StartDate,
		EndDate:     nc.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}

	if uc.Name != "" {
		crs.Name = uc.Name
	}
	if uc.Subject != "" {
		crs.Subject = uc.Subject
	}
	if uc.Description != "" {
		crs.Description = uc.Description
	}
	if uc.Price != nil {
		crs.Price = *uc.Price
	}
	if uc.Schedule != nil {
		crs.Schedule = *uc.Schedule
	}
	if uc.MeetingLink != "" {
		crs.MeetingLink = uc.MeetingLink
	}
	if !uc.StartDate.IsZero() {
		crs.StartDate = uc.StartDate
	}
	if !uc.EndDate.IsZero() {
		crs.EndDate = uc.EndDate
	}
	if uc.Archived != nil {
		crs.Archived = *uc.Archived
	}
	crs.UpdatedAt = time.Now().UTC()

	return svc.repo.UpdateCourse(ctx, crs)
}

// Archive soft-removes a course; courses are never deleted so enrollments keep
// referring to them.
func (svc *Service) Archive(ctx context.Context, id string) (Course, error) {
	archived := true
	return svc.Update(ctx, id, UpdateCourse{Archived: &archived})
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountCourses(ctx)
}
