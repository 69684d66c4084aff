package vaccination

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
	read.GET("/vaccination-sessions", h.ListSessions)
	read.GET("/vaccination-sessions/:id", h.GetSession)

	write := api.Group("", auth.RequireRole(auth.RoleNurse))
	write.POST("/vaccination-sessions", h.CreateSession)
	write.PUT("/vaccination-sessions/:id", h.UpdateSession)
	write.DELETE("/vaccination-sessions/:id", h.DeleteSession)
	write.POST("/vaccination-sessions/:id/:action", h.TransitionSession)
}

func (h *Handler) ListSessions(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{ParamStatus, ParamVaccineType, ParamClass, ParamSearch, ParamSort} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	sessions, total, err := h.svc.SearchSessions(c.Request().Context(), params, pg.PageSize, pg.Offset())
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.Page(c, sessions, total, pg)
}

func (h *Handler) GetSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	sess, err := h.svc.GetSession(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return envelope.Fail(c, http.StatusNotFound, "vaccination session not found")
	}
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, sess, "")
}

func (h *Handler) CreateSession(c echo.Context) error {
	var sess Session
	if err := c.Bind(&sess); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSession(c.Request().Context(), &sess); err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusCreated, sess, "Vaccination session created")
}

func (h *Handler) UpdateSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	var sess Session
	if err := c.Bind(&sess); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	sess.ID = id
	if err := h.svc.UpdateSession(c.Request().Context(), &sess); err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, sess, "Vaccination session updated")
}

func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSession(c.Request().Context(), id); err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, nil, "Vaccination session deleted")
}

func (h *Handler) TransitionSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	var payload console.TransitionPayload
	if err := c.Bind(&payload); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	sess, err := h.svc.Transition(ctx, id, console.Action(c.Param("action")), payload, auth.UserIDFromContext(ctx))
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, nil, sess.Name+" is now "+string(sess.Status))
}
