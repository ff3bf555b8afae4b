package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kamistore/backend/internal/events"
	"github.com/kamistore/backend/internal/logging"
	"github.com/kamistore/backend/internal/models"
	"github.com/kamistore/backend/internal/service/order"
	"github.com/kamistore/backend/internal/service/session"
)

type OrderHandler struct {
	Orders   *order.Service
	Sessions *session.Service
	Producer *events.Producer
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_order")

	user, _, err := currentUser(c, h.Sessions)
	if err != nil {
		return err
	}

	var req struct {
		Items      []models.OrderItem `json:"items"`
		RoomNumber string             `json:"roomNumber"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	created, err := h.Orders.Create(ctx, user.ID, req.Items, req.RoomNumber)
	if err != nil {
		if errors.Is(err, order.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		l.Error("create_order_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	publish(c, h.Producer, events.TopicOrderEvents, fmt.Sprint(created.ID), map[string]interface{}{
		"type":     "order_placed",
		"order_id": created.ID,
		"user_id":  user.ID,
		"qr_value": created.QRValue,
	})

	l.Info("create_order_successful", "order_id", created.ID, "user_id", user.ID)
	return c.JSON(http.StatusCreated, created)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get_order")

	user, _, err := currentUser(c, h.Sessions)
	if err != nil {
		return err
	}

	id, err := orderID(c)
	if err != nil {
		return err
	}

	found, err := h.Orders.Get(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("get_order_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"order": found})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list_orders")

	user, _, err := currentUser(c, h.Sessions)
	if err != nil {
		return err
	}

	orders, err := h.Orders.List(ctx, user.ID)
	if err != nil {
		l.Error("list_orders_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "update_order")

	user, _, err := currentUser(c, h.Sessions)
	if err != nil {
		return err
	}

	var req struct {
		ID     uint               `json:"id"`
		Items  []models.OrderItem `json:"items"`
		Status *string            `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "order ID is required")
	}

	updated, err := h.Orders.Update(ctx, user.ID, req.ID, req.Items, req.Status)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("update_order_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{"order": updated})
}

func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete_order")

	user, _, err := currentUser(c, h.Sessions)
	if err != nil {
		return err
	}

	id, err := orderID(c)
	if err != nil {
		return err
	}

	if err := h.Orders.Cancel(ctx, user.ID, id); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		l.Error("delete_order_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	publish(c, h.Producer, events.TopicOrderEvents, fmt.Sprint(id), map[string]interface{}{
		"type":     "order_cancelled",
		"order_id": id,
		"user_id":  user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "order cancelled successfully"})
}

func orderID(c echo.Context) (uint, error) {
	raw := c.QueryParam("id")
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "order ID is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "order ID is required")
	}
	return uint(id), nil
}
