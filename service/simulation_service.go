package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kokoronote/internal/metrics"
	"kokoronote/model"
)

// SimulationService proposes the next turn of the consultation rehearsal.
// The conversation itself lives in the client; the server only validates the
// submitted history and generates candidate utterances.
type SimulationService struct {
	notes      NoteStore
	intel      Intelligence
	windowDays int
	maxNotes   int
	logger     *zap.Logger
}

func NewSimulationService(notes NoteStore, intel Intelligence, windowDays, maxNotes int, logger *zap.Logger) *SimulationService {
	return &SimulationService{notes: notes, intel: intel, windowDays: windowDays, maxNotes: maxNotes, logger: logger}
}

// validateConversation enforces the shape the simulator guarantees:
// 医師から始まり、役割が厳密に交互で、最後の発言が空でないこと。
func validateConversation(messages []model.ConversationMessage) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: empty conversation", ErrValidation)
	}
	if messages[0].Role != model.RoleDoctor {
		return fmt.Errorf("%w: conversation must start with the doctor", ErrValidation)
	}
	for i, m := range messages {
		if m.Role != model.RoleDoctor && m.Role != model.RoleUser {
			return fmt.Errorf("%w: unknown role %q", ErrValidation, m.Role)
		}
		if i > 0 && m.Role == messages[i-1].Role {
			return fmt.Errorf("%w: roles must alternate", ErrValidation)
		}
	}
	if strings.TrimSpace(messages[len(messages)-1].Content) == "" {
		return fmt.Errorf("%w: last message is empty", ErrValidation)
	}
	return nil
}

// Suggest returns 3-5 candidate utterances for the next turn together with
// the role that will speak them (always the opposite of the last turn).
func (s *SimulationService) Suggest(ctx context.Context, userID uint64, messages []model.ConversationMessage) ([]string, string, error) {
	if err := validateConversation(messages); err != nil {
		return nil, "", err
	}

	last := messages[len(messages)-1]
	if last.Role == model.RoleUser {
		// ユーザーが話し終えた → 次は医師の質問候補。
		suggestions, err := s.intel.GenerateDoctorPrompts(ctx, messages)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		metrics.IncSimulationTurn(model.RoleDoctor)
		return suggestions, model.RoleDoctor, nil
	}

	// 医師が話し終えた → 直近ノートとトレンドを踏まえた患者の返答候補。
	cutoff := time.Now().AddDate(0, 0, -s.windowDays)
	notes, err := s.notes.ListSince(userID, cutoff, s.maxNotes)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	trends := s.latestTrends(userID)
	suggestions, err := s.intel.GeneratePatientReplies(ctx, messages, notes, trends)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	metrics.IncSimulationTurn(model.RoleUser)
	return suggestions, model.RoleUser, nil
}

// latestTrends reads the cached themes when present. Missing cache is fine;
// the reply generator just gets less context.
func (s *SimulationService) latestTrends(userID uint64) []string {
	latest, err := s.notes.Latest(userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("latest note lookup failed", zap.Error(err))
		}
		return nil
	}
	if latest.Trend == nil {
		return nil
	}
	return latest.Trend.Trends
}

// OpeningMessage is the fixed first turn every rehearsal starts from.
func OpeningMessage() model.ConversationMessage {
	return model.ConversationMessage{
		Role:    model.RoleDoctor,
		Content: "体調はどうですか？",
		Suggestions: []string{
			"体調はどうですか？",
			"食事はどうですか？",
			"睡眠はどうですか？",
			"最近の悩みは何ですか？",
		},
	}
}
