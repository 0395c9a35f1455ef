package automation

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zhou-shi/pentama-app/internal/auth"
)

type Handler struct {
	service *Service
	lock    Lock
}

func NewHandler(service *Service, lock Lock) *Handler {
	return &Handler{service: service, lock: lock}
}

type statusResponse struct {
	Active bool       `json:"active"`
	Lock   *LockState `json:"lock,omitempty"`
}

func (h *Handler) status(c echo.Context) error {
	state, err := h.lock.CurrentOwner(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Active: state != nil, Lock: state})
}

// Start activates automation for the calling admin.
func (h *Handler) Start(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	if err := h.lock.Acquire(c.Request().Context(), claims.UserID(), claims.Name); err != nil {
		return err
	}
	return h.status(c)
}

// Stop deactivates automation. Only the activating admin may stop it.
func (h *Handler) Stop(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	if err := h.lock.Release(c.Request().Context(), claims.UserID()); err != nil {
		return err
	}
	return h.status(c)
}

func (h *Handler) Status(c echo.Context) error {
	return h.status(c)
}

// RunNow triggers a run immediately for the admin holding the lock.
func (h *Handler) RunNow(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	report, err := h.service.Run(c.Request().Context(), HeldBy(h.lock, claims.UserID()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
