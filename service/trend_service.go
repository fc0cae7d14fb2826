package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"kokoronote/config"
	"kokoronote/internal/ai"
	"kokoronote/internal/metrics"
	"kokoronote/model"
)

// Trend stream event types, matching the SSE contract the timeline client
// consumes.
const (
	EventTrends       = "trends"
	EventSummary      = "summary"
	EventConsultation = "consultation"
)

// TrendEvent is one typed chunk of the trend stream. Summary/consultation
// content arrives in fragments the consumer concatenates.
type TrendEvent struct {
	Type    string   `json:"type"`
	Trends  []string `json:"trends,omitempty"`
	Content string   `json:"content,omitempty"`
}

// TrendService 趋势合成编排器：缓存检查 → 取窗口 → 主题 → 流式摘要 →
// 回写缓存 → 流式相談例。
type TrendService struct {
	notes  NoteStore
	intel  Intelligence
	rdb    *redis.Client
	cfg    config.TrendConfig
	logger *zap.Logger
}

func NewTrendService(notes NoteStore, intel Intelligence, rdb *redis.Client, cfg config.TrendConfig, logger *zap.Logger) *TrendService {
	return &TrendService{notes: notes, intel: intel, rdb: rdb, cfg: cfg, logger: logger}
}

// Timeout bounds one full generation run. 切断やハングの取り残しを防ぐ。
func (s *TrendService) Timeout() time.Duration {
	return time.Duration(s.cfg.TimeoutSeconds) * time.Second
}

// Stream runs the synthesis state machine and emits events in phase order:
// trends, then summary chunks, then consultation chunks. Storage and theme
// failures surface from this call; the returned channel closes when
// generation finishes or ctx is cancelled.
func (s *TrendService) Stream(ctx context.Context, userID uint64) (<-chan TrendEvent, error) {
	events := make(chan TrendEvent)

	latest, err := s.notes.Latest(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// ノートが無ければ何も流さず終了。クライアント側が案内を出す。
			metrics.IncTrendGeneration("no_notes")
			close(events)
			return events, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// Cache hit: replay the stored payload verbatim, no model calls.
	if latest.Trend.Complete() {
		metrics.IncTrendGeneration("cache_hit")
		go s.replayCached(ctx, events, latest.Trend)
		return events, nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.WindowDays)
	window, err := s.notes.ListSince(userID, cutoff, s.cfg.MaxNotes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if len(window) == 0 {
		metrics.IncTrendGeneration("no_notes")
		close(events)
		return events, nil
	}

	// 同一ユーザーの生成は常に1本だけ。
	if !s.acquireLock(ctx, userID) {
		return nil, ErrGenerationInFlight
	}

	// Themes are generated before the stream starts so a model outage is
	// reported as a request error instead of a silently empty stream.
	trends, err := s.intel.GenerateTrendThemes(ctx, window)
	if err != nil {
		s.releaseLock(userID)
		metrics.IncTrendGeneration("error")
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	go s.generate(ctx, events, userID, latest.ID, window, trends)
	return events, nil
}

// replayCached emits the complete cached payload and terminates.
func (s *TrendService) replayCached(ctx context.Context, events chan<- TrendEvent, cached *model.Trend) {
	defer close(events)
	emit := func(ev TrendEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	if !emit(TrendEvent{Type: EventTrends, Trends: cached.Trends}) {
		return
	}
	if !emit(TrendEvent{Type: EventSummary, Content: cached.Summary}) {
		return
	}
	if cached.Consultation != "" {
		emit(TrendEvent{Type: EventConsultation, Content: cached.Consultation})
	}
}

// generate runs the streaming phases. Phases never interleave; the caller
// disconnecting cancels ctx and stops chunk consumption.
func (s *TrendService) generate(ctx context.Context, events chan<- TrendEvent, userID uint64, cacheNoteID string, window []model.Note, trends []string) {
	start := time.Now()
	defer close(events)
	defer s.releaseLock(userID)

	emit := func(ev TrendEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(TrendEvent{Type: EventTrends, Trends: trends}) {
		metrics.IncTrendGeneration("canceled")
		return
	}

	summaryStream, err := s.intel.StreamSummary(ctx, window, trends)
	if err != nil {
		s.logger.Error("summary stream failed to start", zap.Error(err))
		metrics.IncTrendGeneration("error")
		return
	}
	summary, ok := s.forwardStream(EventSummary, summaryStream, emit)
	if !ok {
		return
	}

	// Persist is best-effort: the response already delivered stays valid
	// even when the cache write fails.
	payload := &model.Trend{Trends: trends, Summary: summary}
	if err := s.notes.UpdateTrend(userID, cacheNoteID, payload); err != nil {
		s.logger.Warn("trend cache write failed",
			zap.Uint64("user_id", userID), zap.Error(err))
	}

	consultationStream, err := s.intel.GenerateConsultationScript(ctx, window, trends,
		func(lctx context.Context, vec []float32, k int) ([]model.Note, error) {
			return s.notes.FindSimilar(userID, vec, k)
		})
	if err != nil {
		s.logger.Error("consultation stream failed to start", zap.Error(err))
		metrics.IncTrendGeneration("error")
		return
	}
	consultation, ok := s.forwardStream(EventConsultation, consultationStream, emit)
	if ok && consultation != "" {
		payload.Consultation = consultation
		if err := s.notes.UpdateTrend(userID, cacheNoteID, payload); err != nil {
			s.logger.Warn("trend cache write failed",
				zap.Uint64("user_id", userID), zap.Error(err))
		}
	}

	metrics.IncTrendGeneration("generated")
	metrics.ObserveTrendDuration(time.Since(start).Seconds())
}

// forwardStream pumps one generation stream to the caller, returning the
// accumulated text. A false return means the phase aborted (cancel or error).
func (s *TrendService) forwardStream(eventType string, stream *ai.TextStream, emit func(TrendEvent) bool) (string, bool) {
	var full strings.Builder
	for chunk := range stream.Chunks() {
		full.WriteString(chunk)
		if !emit(TrendEvent{Type: eventType, Content: chunk}) {
			metrics.IncTrendGeneration("canceled")
			return "", false
		}
	}
	if err := stream.Err(); err != nil {
		outcome := streamOutcome(err)
		if outcome == "error" {
			s.logger.Error("generation stream aborted",
				zap.String("phase", eventType), zap.Error(err))
		}
		metrics.IncTrendGeneration(outcome)
		return "", false
	}
	return full.String(), true
}

// streamOutcome labels why a generation stream stopped. 切断は障害ではない。
func streamOutcome(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

func (s *TrendService) lockKey(userID uint64) string {
	return fmt.Sprintf("kn:trend:inflight:%d", userID)
}

func (s *TrendService) acquireLock(ctx context.Context, userID uint64) bool {
	ttl := s.Timeout() + 10*time.Second
	ok, err := s.rdb.SetNX(ctx, s.lockKey(userID), "1", ttl).Result()
	if err != nil {
		// Redis 障害時は生成を止めない。重複生成は許容できる劣化。
		s.logger.Warn("trend lock unavailable", zap.Error(err))
		return true
	}
	return ok
}

func (s *TrendService) releaseLock(userID uint64) {
	if err := s.rdb.Del(context.Background(), s.lockKey(userID)).Err(); err != nil {
		s.logger.Warn("trend lock release failed", zap.Error(err))
	}
}
