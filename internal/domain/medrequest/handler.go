package medrequest

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/schoolhealth/nurse-console/internal/console"
	"github.com/schoolhealth/nurse-console/internal/platform/auth"
	"github.com/schoolhealth/nurse-console/internal/platform/envelope"
	"github.com/schoolhealth/nurse-console/internal/platform/store"
	"github.com/schoolhealth/nurse-console/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleStaff))
	read.GET("/medication-requests", h.ListRequests)
	read.GET("/medication-requests/:id", h.GetRequest)

	write := api.Group("", auth.RequireRole(auth.RoleNurse))
	write.POST("/medication-requests", h.CreateRequest)
	write.PUT("/medication-requests/:id", h.UpdateRequest)
	write.DELETE("/medication-requests/:id", h.CancelRequest)
	write.POST("/medication-requests/:id/:action", h.TransitionRequest)
}

func (h *Handler) ListRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{ParamStatus, ParamPriority, ParamStudentID, ParamSearch, ParamSort} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	reqs, total, err := h.svc.SearchRequests(c.Request().Context(), params, pg.PageSize, pg.Offset())
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.Page(c, reqs, total, pg)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetRequest(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return envelope.Fail(c, http.StatusNotFound, "medication request not found")
	}
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, r, "")
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var r Request
	if err := c.Bind(&r); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRequest(c.Request().Context(), &r); err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusCreated, r, "Medication request submitted")
}

func (h *Handler) UpdateRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	var r Request
	if err := c.Bind(&r); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	r.ID = id
	if err := h.svc.UpdateRequest(c.Request().Context(), &r); err != nil {
		if errors.Is(err, ErrNotEditable) {
			return envelope.Fail(c, http.StatusConflict, err.Error())
		}
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, r, "Medication request updated")
}

func (h *Handler) CancelRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.CancelRequest(c.Request().Context(), id); err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, nil, "Medication request cancelled")
}

func (h *Handler) TransitionRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	var payload console.TransitionPayload
	if err := c.Bind(&payload); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	r, err := h.svc.Transition(ctx, id, console.Action(c.Param("action")), payload, auth.UserIDFromContext(ctx))
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, nil, "Medication request "+r.Code+" "+string(r.Status))
}
