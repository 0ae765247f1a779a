package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/usecase"
	"go.uber.org/zap"
)

const defaultMappingPageSize = 100

// AdminHandler exposes mappings, backfill control, error flags and manual
// sync of a single entity per tenant.
type AdminHandler struct {
	sync     *usecase.SyncService
	backfill *usecase.BackfillService
	logger   *zap.Logger
}

func NewAdminHandler(syncService *usecase.SyncService, backfill *usecase.BackfillService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		sync:     syncService,
		backfill: backfill,
		logger:   logger,
	}
}

// RegisterRoutes mounts the tenant routes on g.
func (h *AdminHandler) RegisterRoutes(g *echo.Group) {
	tenants := g.Group("/tenants/:tenant")
	tenants.GET("/mappings", h.ListMappings)
	tenants.DELETE("/mappings", h.ResetMappings)
	tenants.POST("/backfill", h.StartBackfill)
	tenants.GET("/backfill", h.GetBackfill)
	tenants.DELETE("/backfill", h.ResetBackfill)
	tenants.GET("/errors", h.ListErrors)
	tenants.POST("/sync/:type/:id", h.SyncEntity)
}

type tenantRequest struct {
	TenantID string `param:"tenant" validate:"required"`
}

type listMappingsRequest struct {
	TenantID string `param:"tenant" validate:"required"`
	Type     string `query:"type"`
	Limit    int    `query:"limit" validate:"omitempty,gte=1,lte=1000"`
	Offset   int    `query:"offset" validate:"gte=0"`
}

type syncEntityRequest struct {
	TenantID string `param:"tenant" validate:"required"`
	Type     string `param:"type" validate:"required"`
	SourceID string `param:"id" validate:"required"`
	Force    bool   `query:"force"`
}

// ListMappings pages through a tenant's mappings, optionally of one type.
func (h *AdminHandler) ListMappings(c echo.Context) error {
	var req listMappingsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	t := entity.EntityType(req.Type)
	if t != "" && !t.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown entity type: "+req.Type)
	}
	if req.Limit == 0 {
		req.Limit = defaultMappingPageSize
	}

	coord, err := h.sync.Coordinator(req.TenantID)
	if err != nil {
		return toHTTPError(err)
	}
	ctx := c.Request().Context()
	mappings, err := coord.List(ctx, t, req.Limit, req.Offset)
	if err != nil {
		return toHTTPError(err)
	}
	total, err := coord.Count(ctx, t)
	if err != nil {
		return toHTTPError(err)
	}
	if mappings == nil {
		mappings = []*entity.EntityMapping{}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"mappings": mappings,
		"total":    total,
		"limit":    req.Limit,
		"offset":   req.Offset,
	})
}

// ResetMappings forgets every mapping of a tenant. Destination records are
// left in place.
func (h *AdminHandler) ResetMappings(c echo.Context) error {
	var req tenantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	coord, err := h.sync.Coordinator(req.TenantID)
	if err != nil {
		return toHTTPError(err)
	}
	deleted, err := coord.Reset(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}

	h.logger.Warn("Mappings reset",
		zap.String("tenant_id", req.TenantID),
		zap.Int64("deleted", deleted))
	return c.JSON(http.StatusOK, echo.Map{"deleted": deleted})
}

// StartBackfill begins a run in the background.
func (h *AdminHandler) StartBackfill(c echo.Context) error {
	var req tenantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	state, err := h.backfill.Start(c.Request().Context(), req.TenantID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusAccepted, state)
}

func (h *AdminHandler) GetBackfill(c echo.Context) error {
	var req tenantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	state, err := h.backfill.Status(c.Request().Context(), req.TenantID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (h *AdminHandler) ResetBackfill(c echo.Context) error {
	var req tenantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.backfill.Reset(c.Request().Context(), req.TenantID); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) ListErrors(c echo.Context) error {
	var req tenantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	syncErrors, err := h.sync.SyncErrors(c.Request().Context(), req.TenantID)
	if err != nil {
		return toHTTPError(err)
	}
	if syncErrors == nil {
		syncErrors = []*entity.SyncError{}
	}
	return c.JSON(http.StatusOK, echo.Map{"errors": syncErrors})
}

// SyncEntity fetches and writes one source record now. force=true rewrites a
// record that is already mapped.
func (h *AdminHandler) SyncEntity(c echo.Context) error {
	var req syncEntityRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	// echo binds query values only for GET and DELETE
	if err := echo.QueryParamsBinder(c).Bool("force", &req.Force).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "force must be a boolean")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.sync.SyncEntity(c.Request().Context(), req.TenantID, entity.EntityType(req.Type), req.SourceID, req.Force)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, result)
}
