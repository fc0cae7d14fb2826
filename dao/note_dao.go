package dao

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"kokoronote/model"
)

type NoteDAO struct {
	db *gorm.DB
}

// NewNoteDAO 创建一个新的 NoteDAO 实例
func NewNoteDAO(db *gorm.DB) *NoteDAO {
	return &NoteDAO{db: db}
}

// CreateNote persists a note and assigns its id and server timestamps.
// 用户未指定 CreatedAt 时由 gorm 填充；Timestamp 一律由服务器写入且不可变。
func (dao *NoteDAO) CreateNote(note *model.Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.Type == "" {
		note.Type = model.NoteTypeNote
	}
	return dao.db.Create(note).Error
}

// GetByID 在用户自己的集合内查询单条笔记
func (dao *NoteDAO) GetByID(userID uint64, id string) (*model.Note, error) {
	var note model.Note
	err := dao.db.Where("user_id = ? AND id = ?", userID, id).First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// List returns a page of notes ordered by creation time descending.
// Offset pagination: concurrent inserts can shift pages, accepted limitation.
func (dao *NoteDAO) List(userID uint64, limit, offset int) ([]model.Note, error) {
	var notes []model.Note
	err := dao.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&notes).Error
	return notes, err
}

// ListSince returns notes inserted at or after the cutoff, newest first.
// トレンド生成や模擬対話の「直近履歴」窓に使う。
func (dao *NoteDAO) ListSince(userID uint64, cutoff time.Time, limit int) ([]model.Note, error) {
	var notes []model.Note
	err := dao.db.Where("user_id = ? AND timestamp >= ?", userID, cutoff).
		Order("timestamp DESC").
		Limit(limit).
		Find(&notes).Error
	return notes, err
}

// Latest 取最近创建的一条笔记（趋势缓存所在）
func (dao *NoteDAO) Latest(userID uint64) (*model.Note, error) {
	var note model.Note
	err := dao.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateFields merges the given columns into one note. Last writer wins,
// no version check.
func (dao *NoteDAO) UpdateFields(userID uint64, id string, fields map[string]interface{}) (*model.Note, error) {
	res := dao.db.Model(&model.Note{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return dao.GetByID(userID, id)
}

// UpdateTrend attaches (or replaces) the cached trend payload on one note.
// 单独走结构体字段更新，让 gorm 的 json 序列化器生效。
func (dao *NoteDAO) UpdateTrend(userID uint64, id string, trend *model.Trend) error {
	res := dao.db.Model(&model.Note{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("trend", trend)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteNote 删除单条笔记
func (dao *NoteDAO) DeleteNote(userID uint64, id string) error {
	res := dao.db.Where("user_id = ? AND id = ?", userID, id).Delete(&model.Note{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindSimilar returns the top-k notes by cosine similarity to the query
// vector. MySQL 没有向量索引，这里在适配层内对该用户的向量做精确扫描，
// 结果与原生索引等价（exact top-k）。
func (dao *NoteDAO) FindSimilar(userID uint64, query []float32, k int) ([]model.Note, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	var notes []model.Note
	err := dao.db.Where("user_id = ? AND embedding IS NOT NULL", userID).
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return topKBySimilarity(notes, query, k), nil
}
