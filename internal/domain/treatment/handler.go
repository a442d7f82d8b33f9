package treatment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/apperr"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments/:id/plan", h.GetPlan)

	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.PUT("/appointments/:id/plan", h.SavePlan)
	doctor.DELETE("/appointments/:id/plan/files/:fileId", h.DeletePlanFile)
}

// planBody is the JSON form of a plan save. List fields may be arrays or
// JSON-encoded strings.
type planBody struct {
	Diagnosis    string          `json:"diagnosis"`
	Prescription string          `json:"prescription"`
	LabTests     json.RawMessage `json:"lab_tests"`
	DietPlan     json.RawMessage `json:"diet_plan"`
	Medications  json.RawMessage `json:"medications"`
	Pharmacy     json.RawMessage `json:"pharmacy"`
	LabID        *uuid.UUID      `json:"lab_id"`
	Status       string          `json:"status"`
}

func (h *Handler) SavePlan(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	req := SaveRequest{AppointmentID: id}
	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		closeFn, err := readMultipartPlan(c, &req)
		if err != nil {
			return err
		}
		defer closeFn()
	} else {
		var body planBody
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		req.Diagnosis = body.Diagnosis
		req.Prescription = body.Prescription
		req.LabTestsRaw = string(body.LabTests)
		req.DietPlanRaw = string(body.DietPlan)
		req.MedicationsRaw = string(body.Medications)
		if len(body.Medications) == 0 {
			req.MedicationsRaw = string(body.Pharmacy)
		}
		req.LabID = body.LabID
		req.Status = body.Status
	}

	plan, err := h.svc.SavePlan(c.Request().Context(), p, req)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, plan)
}

func readMultipartPlan(c echo.Context, req *SaveRequest) (func(), error) {
	noop := func() {}
	req.Diagnosis = c.FormValue("diagnosis")
	req.Prescription = c.FormValue("prescription")
	req.LabTestsRaw = c.FormValue("lab_tests")
	req.DietPlanRaw = c.FormValue("diet_plan")
	req.MedicationsRaw = c.FormValue("medications")
	if req.MedicationsRaw == "" {
		req.MedicationsRaw = c.FormValue("pharmacy")
	}
	req.Status = c.FormValue("status")
	if v := c.FormValue("lab_id"); v != "" {
		labID, err := uuid.Parse(v)
		if err != nil {
			return noop, echo.NewHTTPError(http.StatusBadRequest, "invalid lab_id")
		}
		req.LabID = &labID
	}

	fh, err := c.FormFile("attachment")
	if errors.Is(err, http.ErrMissingFile) {
		return noop, nil
	}
	if err != nil {
		return noop, echo.NewHTTPError(http.StatusBadRequest, "invalid attachment")
	}
	f, err := fh.Open()
	if err != nil {
		return noop, echo.NewHTTPError(http.StatusBadRequest, "invalid attachment")
	}
	req.Attachment = &Upload{FileName: fh.Filename, Content: f}
	return func() { f.Close() }, nil
}

func (h *Handler) GetPlan(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	plan, err := h.svc.GetPlan(c.Request().Context(), p, id)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) DeletePlanFile(c echo.Context) error {
	p, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file id")
	}
	plan, err := h.svc.DeletePlanFile(c.Request().Context(), p, id, fileID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, plan)
}
