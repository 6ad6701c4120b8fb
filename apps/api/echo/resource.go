package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/resource"
	"github.com/trezcool/academia/core/user"
)

type resourceApi struct {
	svc      *resource.Service
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerResourceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *resource.Service,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := resourceApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	rg := g.Group("/resources", jwt)
	rg.GET("", api.query)
	rg.POST("", api.create, teacherOrAdminMiddleware())

	dg := rg.Group("/:id")
	dg.PUT("", api.update, teacherOrAdminMiddleware())
	dg.DELETE("", api.destroy, teacherOrAdminMiddleware())
}

// Handlers

func (api *resourceApi) create(ctx echo.Context) error {
	var data resource.NewResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Create(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resourceApi) query(ctx echo.Context) error {
	filter := new(resource.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []resource.Resource{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	resources, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying resources")
	}
	if resources == nil {
		resources = []resource.Resource{}
	}
	return ctx.JSON(http.StatusOK, resources)
}

// ownerOrAdmin loads the resource and rejects non-owner non-admin mutations.
func (api *resourceApi) ownerOrAdmin(ctx echo.Context) (resource.Resource, error) {
	res, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == resource.ErrNotFound {
			return resource.Resource{}, errHttpNotFound
		}
		return resource.Resource{}, errors.Wrap(err, "finding resource by ID")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "getting context user")
	}
	if res.OwnerID != ctxUsr.ID && !ctxUsr.IsAdmin() {
		return resource.Resource{}, errHttpForbidden
	}
	return res, nil
}

func (api *resourceApi) update(ctx echo.Context) error {
	if _, err := api.ownerOrAdmin(ctx); err != nil {
		return err
	}

	var data resource.UpdateResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateResource")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating resource")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resourceApi) destroy(ctx echo.Context) error {
	if _, err := api.ownerOrAdmin(ctx); err != nil {
		return err
	}

	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}
