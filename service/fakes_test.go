package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"kokoronote/internal/ai"
	"kokoronote/model"
)

// fakeStore is an in-memory NoteStore recording mutations for assertions.
type fakeStore struct {
	notes []model.Note

	createErr  error
	listErr    error
	updateErr  error
	deleteErr  error
	similarErr error

	createdNotes []*model.Note
	updatedWith  map[string]interface{}
	trendWrites  []*model.Trend
	similarCalls int
}

func (f *fakeStore) CreateNote(note *model.Note) error {
	if f.createErr != nil {
		return f.createErr
	}
	if note.ID == "" {
		note.ID = "generated-id"
	}
	if note.Timestamp.IsZero() {
		note.Timestamp = time.Now()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = note.Timestamp
	}
	f.createdNotes = append(f.createdNotes, note)
	f.notes = append([]model.Note{*note}, f.notes...)
	return nil
}

func (f *fakeStore) GetByID(userID uint64, id string) (*model.Note, error) {
	for i := range f.notes {
		if f.notes[i].ID == id && f.notes[i].UserID == userID {
			n := f.notes[i]
			return &n, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) List(userID uint64, limit, offset int) ([]model.Note, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Note
	for _, n := range f.notes {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListSince(userID uint64, cutoff time.Time, limit int) ([]model.Note, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Note
	for _, n := range f.notes {
		if n.UserID == userID && !n.Timestamp.Before(cutoff) {
			out = append(out, n)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Latest(userID uint64) (*model.Note, error) {
	for i := range f.notes {
		if f.notes[i].UserID == userID {
			n := f.notes[i]
			return &n, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) UpdateFields(userID uint64, id string, fields map[string]interface{}) (*model.Note, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updatedWith = fields
	return f.GetByID(userID, id)
}

func (f *fakeStore) UpdateTrend(userID uint64, id string, trend *model.Trend) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	copied := *trend
	f.trendWrites = append(f.trendWrites, &copied)
	return nil
}

func (f *fakeStore) DeleteNote(userID uint64, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.notes {
		if f.notes[i].ID == id && f.notes[i].UserID == userID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeStore) FindSimilar(userID uint64, query []float32, k int) ([]model.Note, error) {
	f.similarCalls++
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	out, _ := f.List(userID, k, 0)
	return out, nil
}

// fakeIntel is a scripted Intelligence.
type fakeIntel struct {
	mood      int
	embedding []float32

	themes    []string
	themesErr error

	summaryChunks      []string
	consultationChunks []string
	streamErr          error

	doctorSuggestions  []string
	patientSuggestions []string
	suggestErr         error

	moodCalls         int
	embeddingCalls    int
	themesCalls       int
	summaryCalls      int
	consultationCalls int
	doctorCalls       int
	patientCalls      int

	patientNotes  []model.Note
	patientTrends []string
}

func (f *fakeIntel) EstimateMood(ctx context.Context, text string) int {
	f.moodCalls++
	if f.mood == 0 {
		return model.MoodNeutral
	}
	return f.mood
}

func (f *fakeIntel) GetEmbedding(ctx context.Context, text string) []float32 {
	f.embeddingCalls++
	return f.embedding
}

func (f *fakeIntel) GenerateTrendThemes(ctx context.Context, notes []model.Note) ([]string, error) {
	f.themesCalls++
	return f.themes, f.themesErr
}

func (f *fakeIntel) StreamSummary(ctx context.Context, notes []model.Note, trends []string) (*ai.TextStream, error) {
	f.summaryCalls++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return ai.NewStaticTextStream(f.summaryChunks...), nil
}

func (f *fakeIntel) GenerateConsultationScript(ctx context.Context, notes []model.Note, trends []string, lookup ai.SimilarityLookup) (*ai.TextStream, error) {
	f.consultationCalls++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if lookup != nil {
		// 検索フェーズの形だけ再現しておく。
		_, _ = lookup(ctx, []float32{0.1, 0.2}, 3)
	}
	return ai.NewStaticTextStream(f.consultationChunks...), nil
}

func (f *fakeIntel) GenerateDoctorPrompts(ctx context.Context, messages []model.ConversationMessage) ([]string, error) {
	f.doctorCalls++
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	return f.doctorSuggestions, nil
}

func (f *fakeIntel) GeneratePatientReplies(ctx context.Context, messages []model.ConversationMessage, notes []model.Note, trends []string) ([]string, error) {
	f.patientCalls++
	f.patientNotes = notes
	f.patientTrends = trends
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	return f.patientSuggestions, nil
}

var errBoom = errors.New("boom")
