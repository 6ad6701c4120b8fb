package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/user"
)

type dashboardApi struct {
	usrSvc   user.ServiceInterface
	crsSvc   *course.Service
	enrSvc   *enrollment.Service
	auditSvc *audit.Service
}

func registerDashboardAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.ServiceInterface,
	crsSvc *course.Service,
	enrSvc *enrollment.Service,
	auditSvc *audit.Service,
) {
	api := dashboardApi{
		usrSvc:   usrSvc,
		crsSvc:   crsSvc,
		enrSvc:   enrSvc,
		auditSvc: auditSvc,
	}
	g.GET("/admin/dashboard", api.retrieve, jwt, adminMiddleware())
}

// DashboardResponse aggregates platform-wide counts for the admin home screen.
type DashboardResponse struct {
	Students    int              `json:"students"`
	Teachers    int              `json:"teachers"`
	Courses     int              `json:"courses"`
	Enrollments enrollment.Stats `json:"enrollments"`
	AuditLogs   audit.Stats      `json:"audit_logs"`
}

func (api *dashboardApi) retrieve(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	students, err := api.usrSvc.CountByRole(reqCtx, user.RoleStudent)
	if err != nil {
		return errors.Wrap(err, "counting students")
	}
	teachers, err := api.usrSvc.CountByRole(reqCtx, user.RoleTeacher)
	if err != nil {
		return errors.Wrap(err, "counting teachers")
	}
	courses, err := api.crsSvc.Count(reqCtx)
	if err != nil {
		return errors.Wrap(err, "counting courses")
	}
	enrStats, err := api.enrSvc.Stats(reqCtx)
	if err != nil {
		return errors.Wrap(err, "counting enrollments")
	}
	_, auditStats, err := api.auditSvc.Query(reqCtx, &audit.QueryFilter{Limit: 1}, nil)
	if err != nil {
		return errors.Wrap(err, "counting audit logs")
	}

	return ctx.JSON(http.StatusOK, DashboardResponse{
		Students:    students,
		Teachers:    teachers,
		Courses:     courses,
		Enrollments: enrStats,
		AuditLogs:   auditStats,
	})
}
