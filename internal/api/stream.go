package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-emergency-alerts/internal/events"
)

// streamAlerts pushes engine events to the client as server-sent events.
// patient_id narrows the stream to one patient.
func (h *Handler) streamAlerts(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming unavailable"})
		return
	}

	id, ch := h.broadcaster.Subscribe(events.ForPatient(c.Query("patient_id")))
	defer h.broadcaster.Unsubscribe(id)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(e.Type, e)
			return true
		}
	})
}
