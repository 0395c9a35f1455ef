package thesis

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zhou-shi/pentama-app/internal/auth"
)

const maxUploadSize = 10 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ActionRequest is the admin action payload. Only the fields of the chosen
// type are read.
type ActionRequest struct {
	Type            string    `json:"type" validate:"required,oneof=review approve reject defer reschedule"`
	Reason          string    `json:"reason"`
	DurationMinutes int       `json:"durationMinutes"`
	At              time.Time `json:"at"`
	RoomID          string    `json:"roomId"`
}

func (r ActionRequest) action() (Action, error) {
	switch r.Type {
	case "review":
		return ReviewAction{}, nil
	case "approve":
		return ApproveAction{}, nil
	case "reject":
		return RejectAction{Reason: strings.TrimSpace(r.Reason)}, nil
	case "defer":
		return DeferAction{Reason: strings.TrimSpace(r.Reason), Duration: time.Duration(r.DurationMinutes) * time.Minute}, nil
	case "reschedule":
		a := RescheduleAction{At: r.At}
		if r.RoomID != "" {
			id, err := primitive.ObjectIDFromHex(r.RoomID)
			if err != nil {
				return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid room ID")
			}
			a.RoomID = id
		}
		return a, nil
	}
	return nil, echo.NewHTTPError(http.StatusBadRequest, "Unknown action")
}

func kindParam(c echo.Context) (Kind, error) {
	kind, ok := ParseKind(c.Param("kind"))
	if !ok {
		return "", echo.NewHTTPError(http.StatusNotFound, "Unknown document kind")
	}
	return kind, nil
}

func idParam(c echo.Context) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return id, echo.NewHTTPError(http.StatusBadRequest, "Invalid document ID")
	}
	return id, nil
}

// Submit accepts a multipart upload of a proposal, results or defense document.
func (h *Handler) Submit(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "File is required")
	}
	if fh.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File exceeds 10 MB")
	}
	if !strings.EqualFold(path.Ext(fh.Filename), ".pdf") {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Only PDF files are accepted")
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	doc, err := h.service.Submit(c.Request().Context(), Submission{
		Kind:          kind,
		StudentID:     claims.UserID(),
		StudentName:   claims.Name,
		Title:         strings.TrimSpace(c.FormValue("title")),
		ResearchField: strings.ToUpper(strings.TrimSpace(c.FormValue("researchField"))),
		Supervisor1:   strings.TrimSpace(c.FormValue("supervisor1")),
		Supervisor2:   strings.TrimSpace(c.FormValue("supervisor2")),
		FileName:      fh.Filename,
		ContentType:   "application/pdf",
		Content:       src,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

// ListOwn returns the student's own documents of a kind.
func (h *Handler) ListOwn(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	docs, err := h.service.List(c.Request().Context(), kind, ListFilter{StudentID: claims.UserID()})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) Progress(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	progress, err := h.service.Progress(c.Request().Context(), claims.UserID())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, progress)
}

// ListAssigned returns the documents the lecturer supervises or examines.
func (h *Handler) ListAssigned(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	docs, err := h.service.List(c.Request().Context(), kind, ListFilter{
		ParticipantID: claims.UserID(),
		Stage:         Stage(c.QueryParam("stage")),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) Evaluate(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var ev Evaluation
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	ev.Kind, ev.DocumentID = kind, id
	doc, err := h.service.Evaluate(c.Request().Context(), claims.UserID(), ev)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// ListAll returns every document of a kind, optionally filtered by stage.
func (h *Handler) ListAll(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	docs, err := h.service.List(c.Request().Context(), kind, ListFilter{Stage: Stage(c.QueryParam("stage"))})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

// ApplyAction runs an admin action on a document.
func (h *Handler) ApplyAction(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	action, err := req.action()
	if err != nil {
		return err
	}
	doc, err := h.service.Apply(c.Request().Context(), kind, id, action)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

// Get returns one document to its owner, its evaluators or an admin.
func (h *Handler) Get(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	kind, err := kindParam(c)
	if err != nil {
		return err
	}
	id, err := idParam(c)
	if err != nil {
		return err
	}
	doc, err := h.service.Get(c.Request().Context(), kind, id, claims.UserID(), claims.IsAdmin)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}
