package api

import (
	"alcyxob/fitness-coach/internal/events"
	"alcyxob/fitness-coach/internal/service"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultHeartbeat = 15 * time.Second

// EventsHandler streams completion signals as Server-Sent Events.
type EventsHandler struct {
	broker      *events.Broker
	authService service.AuthService
	heartbeat   time.Duration
	log         *zap.Logger
}

func NewEventsHandler(broker *events.Broker, authService service.AuthService, log *zap.Logger) *EventsHandler {
	return &EventsHandler{
		broker:      broker,
		authService: authService,
		heartbeat:   defaultHeartbeat,
		log:         log,
	}
}

// Stream godoc
// @Summary Subscribe to a client's RoutineComplete / CycleComplete signals
// @Description Server-Sent Events. The event name is the signal kind; a comment line is sent as heartbeat.
// @Tags Events
// @Security BearerAuth
// @Param clientDni path string true "Client DNI"
// @Produce text/event-stream
// @Router /events/{clientDni} [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	clientDNI := c.Param("clientDni")
	if err := h.authService.CanRead(c.Request.Context(), actor, clientDNI); err != nil {
		respondWithError(c, h.log, err)
		return
	}

	signals, cancel := h.broker.Subscribe(c.Request.Context(), clientDNI)
	defer cancel()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	// opening comment so clients see the stream is live
	fmt.Fprint(c.Writer, ": connected\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case signal, open := <-signals:
			if !open {
				return false
			}
			c.SSEvent(string(signal.Kind), signal)
			return true
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
