package catalog

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
)

// Handler exposes doctor profiles so clients can offer the weekly slots.
type Handler struct {
	doctors DoctorResolver
}

func NewHandler(doctors DoctorResolver) *Handler {
	return &Handler{doctors: doctors}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors/:ident", h.GetDoctor)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.doctors.Resolve(c.Request().Context(), c.Param("ident"))
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}
