package inventory

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
	read.GET("/inventory", h.ListItems)
	read.GET("/inventory/:id", h.GetItem)

	write := api.Group("", auth.RequireRole(auth.RoleNurse))
	write.POST("/inventory", h.CreateItem)
	write.PUT("/inventory/:id", h.UpdateItem)
	write.DELETE("/inventory/:id", h.DeleteItem)
	write.POST("/inventory/:id/:action", h.TransitionItem)
}

func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{ParamStatus, ParamPriority, ParamType, ParamSearch, ParamUrgent, ParamSort} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.SearchItems(c.Request().Context(), params, pg.PageSize, pg.Offset())
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.Page(c, items, total, pg)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	it, err := h.svc.GetItem(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return envelope.Fail(c, http.StatusNotFound, "inventory item not found")
	}
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, it, "")
}

func (h *Handler) CreateItem(c echo.Context) error {
	var it Item
	if err := c.Bind(&it); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateItem(c.Request().Context(), &it); err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusCreated, it, "Inventory item created")
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	var it Item
	if err := c.Bind(&it); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	it.ID = id
	if err := h.svc.UpdateItem(c.Request().Context(), &it); err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, it, "Inventory item updated")
}

func (h *Handler) DeleteItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteItem(c.Request().Context(), id); err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, nil, "Inventory item deleted")
}

func (h *Handler) TransitionItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return envelope.Fail(c, http.StatusBadRequest, "invalid id")
	}
	var payload console.TransitionPayload
	if err := c.Bind(&payload); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	it, err := h.svc.Transition(ctx, id, console.Action(c.Param("action")), payload, auth.UserIDFromContext(ctx))
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, nil, "Inventory item "+string(it.Status))
}
