package pharmacy

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	desk := api.Group("", auth.RequireRole(auth.RolePharmacy, auth.RoleReception))
	desk.GET("/pharmacy-orders", h.ListOrders)
	desk.GET("/pharmacy-orders/:id", h.GetOrder)

	pharmacy := api.Group("", auth.RequireRole(auth.RolePharmacy))
	pharmacy.POST("/pharmacy-orders/:id/complete", h.CompleteOrder)
	pharmacy.GET("/inventory", h.ListInventory)
	pharmacy.POST("/inventory", h.SaveInventoryItem)
	pharmacy.PUT("/inventory/:id", h.SaveInventoryItem)
	pharmacy.DELETE("/inventory/:id", h.DeleteInventoryItem)
}

func (h *Handler) ListOrders(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := OrderFilter{
		OrderStatus:   c.QueryParam("order_status"),
		PaymentStatus: c.QueryParam("payment_status"),
	}
	items, total, err := h.svc.ListOrders(c.Request().Context(), p, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetOrder(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.GetOrder(c.Request().Context(), p, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) CompleteOrder(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.CompleteOrder(c.Request().Context(), p, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) ListInventory(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListInventory(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// SaveInventoryItem serves both create (POST) and update (PUT /:id). JSON and
// form bodies are accepted.
func (h *Handler) SaveInventoryItem(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	var in ItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	status := http.StatusCreated
	if raw := c.Param("id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		in.ID = &id
		status = http.StatusOK
	}
	if err := c.Validate(&in); err != nil {
		return apperr.ToHTTP(err)
	}
	it, err := h.svc.AddInventoryItem(c.Request().Context(), p, in)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(status, it)
}

func (h *Handler) DeleteInventoryItem(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteInventoryItem(c.Request().Context(), p, id); err != nil {
		return apperr.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}
