package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zhou-shi/pentama-app/internal/auth"
)

// NotificationHandler handles HTTP requests for notifications.
type NotificationHandler struct {
	service *NotificationService
}

func NewNotificationHandler(service *NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ScheduleNotification allows admins to schedule an email broadcast.
func (h *NotificationHandler) ScheduleNotification(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	n, err := h.service.ScheduleNotification(c.Request().Context(), req, claims.UserID())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

// ListNotifications returns broadcasts, optionally filtered with ?role=.
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	notifications, err := h.service.ListNotifications(c.Request().Context(), c.QueryParam("role"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}
	if err := h.service.DeleteNotification(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notification deleted successfully"})
}
