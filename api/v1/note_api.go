package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kokoronote/api/v1/request"
	"kokoronote/middleware"
	"kokoronote/service"
)

// NoteAPI 聚合了所有与笔记相关的 HTTP Handler。
type NoteAPI struct {
	service *service.NoteService
}

// NewNoteAPI wires the service layer into the HTTP handlers.
func NewNoteAPI(s *service.NoteService) *NoteAPI {
	return &NoteAPI{service: s}
}

// Create handles POST /notes. Mood and embedding enrichment happen inside
// the service; validation failures never reach the model.
func (n *NoteAPI) Create(c *gin.Context) {
	var req request.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := middleware.CurrentUserID(c)
	note, err := n.service.Create(c.Request.Context(), userID, service.CreateNoteInput{
		Content:   req.Content,
		Mood:      req.Mood,
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"note": note})
}

// List handles GET /notes with offset pagination, newest creation first.
func (n *NoteAPI) List(c *gin.Context) {
	var q request.ListNotesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	notes, err := n.service.List(middleware.CurrentUserID(c), q.Limit, q.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

// Get handles GET /notes/:id.
func (n *NoteAPI) Get(c *gin.Context) {
	note, err := n.service.Get(middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

// Update handles PATCH /notes/:id with a partial field set.
func (n *NoteAPI) Update(c *gin.Context) {
	var req request.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := n.service.Update(middleware.CurrentUserID(c), c.Param("id"), service.UpdateNoteInput{
		Invisible: req.Invisible,
		Mood:      req.Mood,
		Content:   req.Content,
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note})
}

// Delete handles DELETE /notes/:id.
func (n *NoteAPI) Delete(c *gin.Context) {
	if err := n.service.Delete(middleware.CurrentUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
