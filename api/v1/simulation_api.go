package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kokoronote/api/v1/request"
	"kokoronote/middleware"
	"kokoronote/model"
	"kokoronote/service"
)

// SimulationAPI 模擬診察の次発言候補を返す。
type SimulationAPI struct {
	service *service.SimulationService
}

func NewSimulationAPI(s *service.SimulationService) *SimulationAPI {
	return &SimulationAPI{service: s}
}

// Opening handles GET /simulation: the fixed first doctor turn with its
// starter suggestions.
func (s *SimulationAPI) Opening(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": service.OpeningMessage()})
}

// Suggest handles POST /simulation with the full alternating history and
// returns 3-5 candidate utterances for the opposite role.
func (s *SimulationAPI) Suggest(c *gin.Context) {
	var req request.SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	messages := make([]model.ConversationMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, model.ConversationMessage{Role: m.Role, Content: m.Content})
	}
	suggestions, role, err := s.service.Suggest(c.Request.Context(), middleware.CurrentUserID(c), messages)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions, "role": role})
}
