package lab

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
	desk := api.Group("", auth.RequireRole(auth.RoleLab, auth.RoleReception))
	desk.GET("/lab-requests", h.ListRequests)
	desk.GET("/lab-requests/:id", h.GetRequest)
	desk.PATCH("/lab-requests/:id/payment", h.UpdatePayment)

	lab := api.Group("", auth.RequireRole(auth.RoleLab))
	lab.PATCH("/lab-requests/:id/status", h.UpdateTestStatus)
	lab.POST("/lab-requests/:id/report", h.UploadReport)
}

func (h *Handler) ListRequests(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := ListFilter{
		TestStatus:    c.QueryParam("test_status"),
		PaymentStatus: c.QueryParam("payment_status"),
	}
	items, total, err := h.svc.ListRequests(c.Request().Context(), p, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetRequest(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	lr, err := h.svc.GetRequest(c.Request().Context(), p, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, lr)
}

func (h *Handler) UpdatePayment(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req PaymentUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	lr, err := h.svc.UpdatePayment(c.Request().Context(), p, id, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, lr)
}

func (h *Handler) UpdateTestStatus(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req StatusUpdate
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return apperr.ToHTTP(err)
	}
	lr, err := h.svc.UpdateTestStatus(c.Request().Context(), p, id, req.TestStatus)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, lr)
}

// UploadReport expects a multipart form with the file under "report".
func (h *Handler) UploadReport(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	fh, err := c.FormFile("report")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "report file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report file")
	}
	defer f.Close()

	lr, err := h.svc.UploadReport(c.Request().Context(), p, id, Upload{FileName: fh.Filename, Content: f})
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, lr)
}
