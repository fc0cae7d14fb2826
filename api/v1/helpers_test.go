package v1

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"kokoronote/internal/ai"
	myvalidator "kokoronote/internal/validator"
	"kokoronote/model"
)

var testBindingOnce sync.Once

// setupBinding registers the custom validators the way main does.
func setupBinding() {
	testBindingOnce.Do(func() {
		gin.SetMode(gin.TestMode)
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("mobile", myvalidator.IsMobile)
			_ = v.RegisterValidation("notecontent", myvalidator.IsNoteContent)
		}
	})
}

// newTestRouter は認証済みコンテキストを模したルーターを返す。
func newTestRouter(userID uint64) *gin.Engine {
	setupBinding()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Next()
	})
	return r
}

// apiStore is the minimal in-memory NoteStore the handler tests need.
type apiStore struct {
	notes []model.Note
}

func (f *apiStore) CreateNote(note *model.Note) error {
	if note.ID == "" {
		note.ID = "note-1"
	}
	if note.Timestamp.IsZero() {
		note.Timestamp = time.Now()
	}
	f.notes = append([]model.Note{*note}, f.notes...)
	return nil
}

func (f *apiStore) GetByID(userID uint64, id string) (*model.Note, error) {
	for i := range f.notes {
		if f.notes[i].ID == id && f.notes[i].UserID == userID {
			n := f.notes[i]
			return &n, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *apiStore) List(userID uint64, limit, offset int) ([]model.Note, error) {
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

func (f *apiStore) ListSince(userID uint64, cutoff time.Time, limit int) ([]model.Note, error) {
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

func (f *apiStore) Latest(userID uint64) (*model.Note, error) {
	for i := range f.notes {
		if f.notes[i].UserID == userID {
			n := f.notes[i]
			return &n, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *apiStore) UpdateFields(userID uint64, id string, fields map[string]interface{}) (*model.Note, error) {
	note, err := f.GetByID(userID, id)
	if err != nil {
		return nil, err
	}
	if v, ok := fields["content"].(string); ok {
		note.Content = v
	}
	if v, ok := fields["mood"].(int); ok {
		note.Mood = &v
	}
	if v, ok := fields["mood_type"].(string); ok {
		note.MoodType = v
	}
	if v, ok := fields["invisible"].(bool); ok {
		note.Invisible = v
	}
	for i := range f.notes {
		if f.notes[i].ID == id {
			f.notes[i] = *note
		}
	}
	return note, nil
}

func (f *apiStore) UpdateTrend(userID uint64, id string, trend *model.Trend) error {
	for i := range f.notes {
		if f.notes[i].ID == id && f.notes[i].UserID == userID {
			copied := *trend
			f.notes[i].Trend = &copied
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *apiStore) DeleteNote(userID uint64, id string) error {
	for i := range f.notes {
		if f.notes[i].ID == id && f.notes[i].UserID == userID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *apiStore) FindSimilar(userID uint64, query []float32, k int) ([]model.Note, error) {
	return f.List(userID, k, 0)
}

// apiIntel returns canned generation results.
type apiIntel struct {
	mood               int
	themes             []string
	summaryChunks      []string
	consultationChunks []string
	suggestions        []string
}

func (f *apiIntel) EstimateMood(ctx context.Context, text string) int {
	if f.mood == 0 {
		return model.MoodNeutral
	}
	return f.mood
}

func (f *apiIntel) GetEmbedding(ctx context.Context, text string) []float32 {
	return []float32{0.5}
}

func (f *apiIntel) GenerateTrendThemes(ctx context.Context, notes []model.Note) ([]string, error) {
	return f.themes, nil
}

func (f *apiIntel) StreamSummary(ctx context.Context, notes []model.Note, trends []string) (*ai.TextStream, error) {
	return ai.NewStaticTextStream(f.summaryChunks...), nil
}

func (f *apiIntel) GenerateConsultationScript(ctx context.Context, notes []model.Note, trends []string, lookup ai.SimilarityLookup) (*ai.TextStream, error) {
	return ai.NewStaticTextStream(f.consultationChunks...), nil
}

func (f *apiIntel) GenerateDoctorPrompts(ctx context.Context, messages []model.ConversationMessage) ([]string, error) {
	return f.suggestions, nil
}

func (f *apiIntel) GeneratePatientReplies(ctx context.Context, messages []model.ConversationMessage, notes []model.Note, trends []string) ([]string, error) {
	return f.suggestions, nil
}
