package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kokoronote/config"
	"kokoronote/model"
)

// ロックは到達不能な Redis でソフトパスさせる。
func newTrendService(store *fakeStore, intel *fakeIntel) *TrendService {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	cfg := config.TrendConfig{WindowDays: 90, SimulationWindowDays: 30, MaxNotes: 100, TimeoutSeconds: 5}
	return NewTrendService(store, intel, rdb, cfg, zap.NewNop())
}

func drainEvents(t *testing.T, events <-chan TrendEvent) []TrendEvent {
	t.Helper()
	var out []TrendEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event stream did not close")
		}
	}
}

func concatContent(events []TrendEvent, eventType string) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == eventType {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

func TestStreamGeneratesInPhaseOrder(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.CreateNote(&model.Note{UserID: 1, Content: "眠れない日が続く"}))
	intel := &fakeIntel{
		themes:             []string{"不眠", "食欲低下"},
		summaryChunks:      []string{"今週は", "不眠気味でした。"},
		consultationChunks: []string{"先生に", "相談してみましょう。"},
	}
	svc := newTrendService(store, intel)

	events, err := svc.Stream(context.Background(), 1)
	require.NoError(t, err)
	got := drainEvents(t, events)

	require.NotEmpty(t, got)
	assert.Equal(t, EventTrends, got[0].Type)
	assert.Equal(t, []string{"不眠", "食欲低下"}, got[0].Trends)

	// summary のチャンクが consultation より前に全部出ること。
	lastSummary, firstConsultation := -1, -1
	for i, ev := range got {
		if ev.Type == EventSummary {
			lastSummary = i
		}
		if ev.Type == EventConsultation && firstConsultation == -1 {
			firstConsultation = i
		}
	}
	require.NotEqual(t, -1, lastSummary)
	require.NotEqual(t, -1, firstConsultation)
	assert.Less(t, lastSummary, firstConsultation)

	assert.Equal(t, "今週は不眠気味でした。", concatContent(got, EventSummary))
	assert.Equal(t, "先生に相談してみましょう。", concatContent(got, EventConsultation))
}

func TestStreamPersistsTrendOnLatestNote(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.CreateNote(&model.Note{UserID: 1, Content: "メモ"}))
	intel := &fakeIntel{
		themes:             []string{"不眠"},
		summaryChunks:      []string{"要約です。"},
		consultationChunks: []string{"相談例です。"},
	}
	svc := newTrendService(store, intel)

	events, err := svc.Stream(context.Background(), 1)
	require.NoError(t, err)
	drainEvents(t, events)

	// summary 後と consultation 後の2回書く。
	require.Len(t, store.trendWrites, 2)
	assert.Equal(t, []string{"不眠"}, store.trendWrites[0].Trends)
	assert.Equal(t, "要約です。", store.trendWrites[0].Summary)
	assert.Empty(t, store.trendWrites[0].Consultation)
	assert.Equal(t, "相談例です。", store.trendWrites[1].Consultation)
}

func TestStreamReplaysCacheWithoutModelCalls(t *testing.T) {
	store := &fakeStore{}
	cached := &model.Trend{
		Trends:       []string{"頭痛"},
		Summary:      "キャッシュ済み要約",
		Consultation: "キャッシュ済み相談例",
	}
	require.NoError(t, store.CreateNote(&model.Note{UserID: 1, Content: "メモ", Trend: cached}))
	intel := &fakeIntel{}
	svc := newTrendService(store, intel)

	events, err := svc.Stream(context.Background(), 1)
	require.NoError(t, err)
	got := drainEvents(t, events)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"頭痛"}, got[0].Trends)
	assert.Equal(t, "キャッシュ済み要約", got[1].Content)
	assert.Equal(t, "キャッシュ済み相談例", got[2].Content)
	assert.Equal(t, 0, intel.themesCalls)
	assert.Equal(t, 0, intel.summaryCalls)
	assert.Equal(t, 0, intel.consultationCalls)
}

func TestStreamReplaysCacheWithoutConsultation(t *testing.T) {
	// consultation が保存前に切断されたケース。要約までは完成扱い。
	store := &fakeStore{}
	cached := &model.Trend{Trends: []string{"頭痛"}, Summary: "要約のみ"}
	require.NoError(t, store.CreateNote(&model.Note{UserID: 1, Content: "メモ", Trend: cached}))
	svc := newTrendService(store, &fakeIntel{})

	events, err := svc.Stream(context.Background(), 1)
	require.NoError(t, err)
	got := drainEvents(t, events)

	require.Len(t, got, 2)
	assert.Equal(t, EventTrends, got[0].Type)
	assert.Equal(t, EventSummary, got[1].Type)
}

func TestStreamNoNotesClosesEmpty(t *testing.T) {
	svc := newTrendService(&fakeStore{}, &fakeIntel{})

	events, err := svc.Stream(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, drainEvents(t, events))
}

func TestStreamOutcomeDistinguishesCancellation(t *testing.T) {
	assert.Equal(t, "canceled", streamOutcome(context.Canceled))
	assert.Equal(t, "canceled", streamOutcome(context.DeadlineExceeded))
	assert.Equal(t, "canceled", streamOutcome(fmt.Errorf("stream recv: %w", context.Canceled)))
	assert.Equal(t, "error", streamOutcome(errBoom))
}

func TestStreamThemeFailureSurfaces(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.CreateNote(&model.Note{UserID: 1, Content: "メモ"}))
	svc := newTrendService(store, &fakeIntel{themesErr: errBoom})

	_, err := svc.Stream(context.Background(), 1)
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestStreamStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.CreateNote(&model.Note{UserID: 1, Content: "メモ"}))
	intel := &fakeIntel{
		themes:             []string{"不眠"},
		summaryChunks:      []string{"a", "b", "c"},
		consultationChunks: []string{"d"},
	}
	svc := newTrendService(store, intel)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.Stream(ctx, 1)
	require.NoError(t, err)

	// 最初のイベントだけ受けて切断。チャネルは必ず閉じる。
	<-events
	cancel()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream did not terminate after cancel")
		}
	}
}
