package model

import "time"

// Mood score bounds and sources. 1-2 强负面, 3-5 中性, 6-7 正面。
const (
	MoodMin = 1
	MoodMax = 7
	// MoodNeutral is the fallback when AI estimation fails.
	MoodNeutral = 4

	MoodTypeManual    = "manual"
	MoodTypeEstimated = "estimated"

	NoteTypeNote = "note"
)

// Trend 附着在最近一条笔记上的缓存结果
type Trend struct {
	Trends       []string `json:"trends,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Consultation string   `json:"consultation,omitempty"`
}

// Complete reports whether the payload can be replayed without regeneration.
// The consultation script is optional and not part of the check.
func (t *Trend) Complete() bool {
	return t != nil && len(t.Trends) > 0 && t.Summary != ""
}

// Note 笔记模型。CreatedAt 可由用户回溯编辑，Timestamp 写入后不变。
type Note struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Type      string    `gorm:"size:16;default:note" json:"type"`
	Invisible bool      `gorm:"default:false" json:"invisible"`
	Mood      *int      `json:"mood,omitempty"`
	MoodType  string    `gorm:"size:16" json:"mood_type,omitempty"`
	Embedding []float32 `gorm:"serializer:json;type:json" json:"-"`
	Trend     *Trend    `gorm:"serializer:json;type:json" json:"trend,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Timestamp time.Time `gorm:"index;autoCreateTime" json:"timestamp"`
}
