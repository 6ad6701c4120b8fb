package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/user"
)

type auditApi struct {
	svc    *audit.Service
	usrSvc user.ServiceInterface
}

func registerAuditAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *audit.Service, usrSvc user.ServiceInterface) {
	api := auditApi{svc: svc, usrSvc: usrSvc}

	ag := g.Group("/admin/audit-logs", jwt, adminMiddleware())
	ag.GET("", api.query)
}

// Handlers

func (api *auditApi) query(ctx echo.Context) error {
	filter := new(audit.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, AuditLogResponse{Results: []audit.Entry{}})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	entries, stats, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying audit logs")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return ctx.JSON(http.StatusOK, AuditLogResponse{Results: entries, Stats: stats})
}

// AuditLogResponse carries a page of entries plus aggregate stats over the
// whole filtered set.
type AuditLogResponse struct {
	Results []audit.Entry `json:"results"`
	Stats   audit.Stats   `json:"stats"`
}
