package request

import "time"

// CreateNoteRequest 笔记创建请求。mood 省略时由服务端推定。
type CreateNoteRequest struct {
	Content   string     `json:"content" binding:"required,notecontent"`
	Mood      *int       `json:"mood" binding:"omitempty,min=1,max=7"`
	CreatedAt *time.Time `json:"created_at"`
}

// UpdateNoteRequest carries the editable subset; absent fields stay as-is.
type UpdateNoteRequest struct {
	Invisible *bool      `json:"invisible"`
	Mood      *int       `json:"mood" binding:"omitempty,min=1,max=7"`
	Content   *string    `json:"content" binding:"omitempty,notecontent"`
	CreatedAt *time.Time `json:"created_at"`
}

// ListNotesQuery offset 分页参数
type ListNotesQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=50"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}
