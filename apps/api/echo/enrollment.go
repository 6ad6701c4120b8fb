package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/user"
)

type enrollmentApi struct {
	svc      *enrollment.Service
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerEnrollmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *enrollment.Service,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := enrollmentApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	// student endpoints
	eg := g.Group("/enrollments", jwt)
	eg.POST("", api.enroll, studentMiddleware())
	eg.GET("", api.queryOwn, studentMiddleware())

	// admin endpoints
	ag := g.Group("/admin/enrollments", jwt, adminMiddleware())
	ag.GET("", api.query)
	ag.PATCH("/:id/payment-status", api.setPaymentStatus)
	ag.POST("/:id/receipt", api.issueReceipt)
}

// Handlers

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	ne := enrollment.NewEnrollment{
		StudentID: ctxUsr.ID, // students only enroll themselves
		CourseID:  data.CourseID,
	}
	if err := ne.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), ne)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) queryOwn(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enrs, err := api.svc.Query(ctx.Request().Context(), &enrollment.QueryFilter{StudentID: ctxUsr.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	filter := new(enrollment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Enrollment{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	enrs, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) setPaymentStatus(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data PaymentStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentStatusRequest")
	}

	enr, err := api.svc.SetPaymentStatus(ctx.Request().Context(), ctx.Param("id"), data.Status, ctxUsr)
	if err != nil {
		if errors.Cause(err) == enrollment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting payment status")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) issueReceipt(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enr, err := api.svc.IssueReceipt(ctx.Request().Context(), ctx.Param("id"), ctxUsr)
	if err != nil {
		if errors.Cause(err) == enrollment.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "issuing receipt")
	}
	return ctx.JSON(http.StatusOK, enr)
}

type (
	EnrollRequest struct {
		CourseID string `json:"course_id" validate:"required"`
	}

	PaymentStatusRequest struct {
		Status enrollment.PaymentStatus `json:"status"`
	}
)
