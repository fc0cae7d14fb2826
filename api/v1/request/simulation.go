package request

// SimulationMessage 客户端提交的一轮发言
type SimulationMessage struct {
	Role    string `json:"role" binding:"required,oneof=doctor user"`
	Content string `json:"content"`
}

// SimulationRequest is the full alternating history of one rehearsal.
type SimulationRequest struct {
	Messages []SimulationMessage `json:"messages" binding:"required,min=1,dive"`
}
