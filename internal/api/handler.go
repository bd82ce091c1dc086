package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mr1hm/go-emergency-alerts/internal/engine"
	"github.com/mr1hm/go-emergency-alerts/internal/events"
	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/repository"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// AlertService is the engine surface exposed over HTTP.
type AlertService interface {
	CreateAndProcessAlert(ctx context.Context, payload models.TriggerPayload) (*models.EmergencyAlert, error)
	GetAlert(ctx context.Context, id string) (*models.EmergencyAlert, error)
	ListAlerts(ctx context.Context, filter repository.AlertFilter) ([]models.EmergencyAlert, error)
	UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) (*models.EmergencyAlert, error)
	EscalateAlert(ctx context.Context, id string) (*models.EmergencyAlert, error)
}

type ContactWriter interface {
	AddContact(ctx context.Context, c *models.EmergencyContact) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	alerts      AlertService
	contacts    ContactWriter
	broadcaster *events.Broadcaster
	db          Pinger
}

func NewHandler(alerts AlertService, contacts ContactWriter, broadcaster *events.Broadcaster, db Pinger) *Handler {
	return &Handler{
		alerts:      alerts,
		contacts:    contacts,
		broadcaster: broadcaster,
		db:          db,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	alerts := r.Group("/api/alerts")
	alerts.POST("", h.createAlert)
	alerts.GET("", h.listAlerts)
	alerts.GET("/stream", h.streamAlerts)
	alerts.GET("/:id", h.getAlert)
	alerts.PATCH("/:id/status", h.updateStatus)
	alerts.POST("/:id/escalate", h.escalate)

	r.POST("/api/patients/:patient_id/contacts", h.addContact)
}

func (h *Handler) createAlert(c *gin.Context) {
	var payload models.TriggerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	alert, err := h.alerts.CreateAndProcessAlert(c.Request.Context(), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) getAlert(c *gin.Context) {
	alert, err := h.alerts.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) listAlerts(c *gin.Context) {
	filter := repository.AlertFilter{
		Limit: defaultListLimit,
	}

	if p := c.Query("patient_id"); p != "" {
		filter.PatientID = &p
	}
	if s := c.Query("status"); s != "" {
		status, ok := models.ParseAlertStatus(s)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + s})
			return
		}
		filter.Status = &status
	}
	if u := c.Query("urgency_level"); u != "" {
		level := models.ParseUrgencyLevel(u)
		if level == models.UrgencyUnknown {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown urgency level: " + u})
			return
		}
		filter.UrgencyLevel = &level
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxListLimit {
			filter.Limit = lim
		}
	}

	alerts, err := h.alerts.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		slog.Error("failed to list alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch alerts",
		})
		return
	}

	c.JSON(http.StatusOK, toAlertList(alerts))
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	status, ok := models.ParseAlertStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + req.Status})
		return
	}

	alert, err := h.alerts.UpdateAlertStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) escalate(c *gin.Context) {
	alert, err := h.alerts.EscalateAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) addContact(c *gin.Context) {
	var contact models.EmergencyContact
	if err := c.ShouldBindJSON(&contact); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	contact.PatientID = c.Param("patient_id")
	if contact.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if contact.Phone == "" && contact.Email == "" && contact.PushToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one of phone, email or push_token is required"})
		return
	}
	if contact.ContactID == "" {
		contact.ContactID = uuid.NewString()
	}

	if err := h.contacts.AddContact(c.Request.Context(), &contact); err != nil {
		slog.Error("failed to store contact", "patient_id", contact.PatientID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store contact"})
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *Handler) health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, engine.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
