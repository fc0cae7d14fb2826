package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kokoronote/internal/metrics"
	"kokoronote/model"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// NoteService owns note validation, AI enrichment and CRUD orchestration.
type NoteService struct {
	notes  NoteStore
	intel  Intelligence
	logger *zap.Logger
}

func NewNoteService(notes NoteStore, intel Intelligence, logger *zap.Logger) *NoteService {
	return &NoteService{notes: notes, intel: intel, logger: logger}
}

// CreateNoteInput 作成リクエスト。Mood 未指定なら AI 推定に回す。
type CreateNoteInput struct {
	Content   string
	Mood      *int
	CreatedAt *time.Time
}

// UpdateNoteInput carries the editable subset of a note. Nil means
// "leave unchanged"; Timestamp is immutable and not represented here.
type UpdateNoteInput struct {
	Invisible *bool
	Mood      *int
	Content   *string
	CreatedAt *time.Time
}

func validateContent(content string) error {
	n := utf8.RuneCountInString(content)
	if strings.TrimSpace(content) == "" || n < 1 || n > 1024 {
		return fmt.Errorf("%w: content must be 1-1024 characters", ErrValidation)
	}
	return nil
}

func validateMood(mood int) error {
	if mood < model.MoodMin || mood > model.MoodMax {
		return fmt.Errorf("%w: mood must be in [%d,%d]", ErrValidation, model.MoodMin, model.MoodMax)
	}
	return nil
}

// Create validates the input, enriches it with mood and embedding, and
// persists the note. Enrichment fails soft: creation never blocks on AI
// availability.
func (s *NoteService) Create(ctx context.Context, userID uint64, in CreateNoteInput) (*model.Note, error) {
	if err := validateContent(in.Content); err != nil {
		return nil, err
	}
	if in.Mood != nil {
		if err := validateMood(*in.Mood); err != nil {
			return nil, err
		}
	}

	var (
		embedding []float32
		mood      int
		moodType  string
	)
	if in.Mood != nil {
		mood = *in.Mood
		moodType = model.MoodTypeManual
		embedding = s.intel.GetEmbedding(ctx, in.Content)
	} else {
		// embedding 生成と気分推定は独立なので並行に投げる。
		moodType = model.MoodTypeEstimated
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			embedding = s.intel.GetEmbedding(ctx, in.Content)
		}()
		go func() {
			defer wg.Done()
			mood = s.intel.EstimateMood(ctx, in.Content)
		}()
		wg.Wait()
	}

	note := &model.Note{
		UserID:    userID,
		Content:   in.Content,
		Type:      model.NoteTypeNote,
		Mood:      &mood,
		MoodType:  moodType,
		Embedding: embedding,
	}
	if in.CreatedAt != nil {
		note.CreatedAt = *in.CreatedAt
	}
	if err := s.notes.CreateNote(note); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	metrics.IncNoteCreated(moodType)
	return note, nil
}

// List returns one timeline page, newest creation first.
func (s *NoteService) List(userID uint64, limit, offset int) ([]model.Note, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	notes, err := s.notes.List(userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return notes, nil
}

// Get 単一ノート取得
func (s *NoteService) Get(userID uint64, id string) (*model.Note, error) {
	note, err := s.notes.GetByID(userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return note, nil
}

// Update merges the provided fields. Supplying a mood marks it manual;
// an empty patch is rejected. Last writer wins, no version check.
func (s *NoteService) Update(userID uint64, id string, in UpdateNoteInput) (*model.Note, error) {
	fields := map[string]interface{}{}
	if in.Invisible != nil {
		fields["invisible"] = *in.Invisible
	}
	if in.Mood != nil {
		if err := validateMood(*in.Mood); err != nil {
			return nil, err
		}
		fields["mood"] = *in.Mood
		fields["mood_type"] = model.MoodTypeManual
	}
	if in.Content != nil {
		if err := validateContent(*in.Content); err != nil {
			return nil, err
		}
		fields["content"] = *in.Content
	}
	if in.CreatedAt != nil {
		fields["created_at"] = *in.CreatedAt
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no editable fields in request", ErrValidation)
	}

	note, err := s.notes.UpdateFields(userID, id, fields)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return note, nil
}

// Delete 删除单条笔记
func (s *NoteService) Delete(userID uint64, id string) error {
	if err := s.notes.DeleteNote(userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
