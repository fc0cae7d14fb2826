package v1

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"kokoronote/middleware"
	"kokoronote/service"
)

// TrendAPI exposes the server-push trend stream.
type TrendAPI struct {
	service *service.TrendService
}

func NewTrendAPI(s *service.TrendService) *TrendAPI {
	return &TrendAPI{service: s}
}

// Stream handles GET /trends as an SSE stream of typed events. The request
// context carries both the client-disconnect signal and the generation
// deadline; either one stops the producer.
func (t *TrendAPI) Stream(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), t.service.Timeout())
	defer cancel()

	events, err := t.service.Stream(ctx, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return false
		}
		c.SSEvent("message", string(data))
		return true
	})
}
