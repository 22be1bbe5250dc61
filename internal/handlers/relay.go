package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/medlemine/ashport/internal/realtime"
)

// RelayHandler bridges the websocket relay into the router.
type RelayHandler struct {
	relay *realtime.Relay
}

func NewRelayHandler(relay *realtime.Relay) *RelayHandler {
	return &RelayHandler{relay: relay}
}

// GET /ws/relay?email=&role=
func (h *RelayHandler) Serve(c *gin.Context) {
	h.relay.Serve(c.Query("email"), c.Query("role"), c.Writer, c.Request)
}
