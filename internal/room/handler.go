package room

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zhou-shi/pentama-app/internal/auth"
)

// RoomHandler handles HTTP requests for room management.
type RoomHandler struct {
	service *RoomService
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(service *RoomService) *RoomHandler {
	return &RoomHandler{service: service}
}

// CreateRoom allows admins to add a room.
func (h *RoomHandler) CreateRoom(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	var req RoomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	room, err := h.service.Create(c.Request().Context(), req, claims.UserID())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, room)
}

// UpdateRoom edits a room's details and availability.
func (h *RoomHandler) UpdateRoom(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid room ID")
	}
	var req RoomRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	room, err := h.service.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, room)
}

// ListRooms returns every room with its usage count.
func (h *RoomHandler) ListRooms(c echo.Context) error {
	rooms, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rooms)
}

// DeleteRoom removes a room.
func (h *RoomHandler) DeleteRoom(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid room ID")
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Room deleted successfully"})
}
