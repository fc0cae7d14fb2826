package service

import (
	"context"
	"time"

	"kokoronote/internal/ai"
	"kokoronote/model"
)

// NoteStore is the per-user document store the services depend on.
// *dao.NoteDAO satisfies it; tests substitute fakes.
type NoteStore interface {
	CreateNote(note *model.Note) error
	GetByID(userID uint64, id string) (*model.Note, error)
	List(userID uint64, limit, offset int) ([]model.Note, error)
	ListSince(userID uint64, cutoff time.Time, limit int) ([]model.Note, error)
	Latest(userID uint64) (*model.Note, error)
	UpdateFields(userID uint64, id string, fields map[string]interface{}) (*model.Note, error)
	UpdateTrend(userID uint64, id string, trend *model.Trend) error
	DeleteNote(userID uint64, id string) error
	FindSimilar(userID uint64, query []float32, k int) ([]model.Note, error)
}

// Intelligence is the text-intelligence adapter surface. *ai.Client
// satisfies it.
type Intelligence interface {
	EstimateMood(ctx context.Context, text string) int
	GetEmbedding(ctx context.Context, text string) []float32
	GenerateTrendThemes(ctx context.Context, notes []model.Note) ([]string, error)
	StreamSummary(ctx context.Context, notes []model.Note, trends []string) (*ai.TextStream, error)
	GenerateConsultationScript(ctx context.Context, notes []model.Note, trends []string, lookup ai.SimilarityLookup) (*ai.TextStream, error)
	GenerateDoctorPrompts(ctx context.Context, messages []model.ConversationMessage) ([]string, error)
	GeneratePatientReplies(ctx context.Context, messages []model.ConversationMessage, notes []model.Note, trends []string) ([]string, error)
}
