package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kokoronote/config"
	"kokoronote/model"
	"kokoronote/service"
)

// sseRecorder adds the CloseNotify gin's Stream helper expects; the plain
// httptest recorder does not implement it.
type sseRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newSSERecorder() *sseRecorder {
	return &sseRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
}

func (r *sseRecorder) CloseNotify() <-chan bool { return r.closed }

func doSSE(t *testing.T, r *gin.Engine, path string) *sseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := newSSERecorder()
	r.ServeHTTP(w, req)
	return w
}

func newTrendRouter(store *apiStore, intel *apiIntel) *gin.Engine {
	r := newTestRouter(1)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	cfg := config.TrendConfig{WindowDays: 90, SimulationWindowDays: 30, MaxNotes: 100, TimeoutSeconds: 5}
	api := NewTrendAPI(service.NewTrendService(store, intel, rdb, cfg, zap.NewNop()))
	r.GET("/trends", api.Stream)
	return r
}

// parseSSE は data: 行を service.TrendEvent に戻す。
func parseSSE(t *testing.T, body string) []service.TrendEvent {
	t.Helper()
	var events []service.TrendEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev service.TrendEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &ev), line)
		events = append(events, ev)
	}
	return events
}

func TestTrendStreamEmitsTypedEvents(t *testing.T) {
	store := &apiStore{}
	require.NoError(t, store.CreateNote(&model.Note{UserID: 1, Content: "眠れない日が続く"}))
	intel := &apiIntel{
		themes:             []string{"不眠"},
		summaryChunks:      []string{"今週は", "不眠気味でした。"},
		consultationChunks: []string{"相談してみましょう。"},
	}
	r := newTrendRouter(store, intel)

	w := doSSE(t, r, "/trends")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := parseSSE(t, w.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, service.EventTrends, events[0].Type)
	assert.Equal(t, []string{"不眠"}, events[0].Trends)

	var summary, consultation strings.Builder
	for _, ev := range events[1:] {
		switch ev.Type {
		case service.EventSummary:
			summary.WriteString(ev.Content)
		case service.EventConsultation:
			consultation.WriteString(ev.Content)
		}
	}
	assert.Equal(t, "今週は不眠気味でした。", summary.String())
	assert.Equal(t, "相談してみましょう。", consultation.String())
}

func TestTrendStreamReplaysCache(t *testing.T) {
	store := &apiStore{}
	require.NoError(t, store.CreateNote(&model.Note{
		UserID:  1,
		Content: "メモ",
		Trend: &model.Trend{
			Trends:       []string{"頭痛"},
			Summary:      "キャッシュ済み要約",
			Consultation: "キャッシュ済み相談例",
		},
	}))
	r := newTrendRouter(store, &apiIntel{})

	w := doSSE(t, r, "/trends")
	require.Equal(t, http.StatusOK, w.Code)

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, service.EventTrends, events[0].Type)
	assert.Equal(t, "キャッシュ済み要約", events[1].Content)
	assert.Equal(t, "キャッシュ済み相談例", events[2].Content)
}

func TestTrendStreamWithoutNotes(t *testing.T) {
	r := newTrendRouter(&apiStore{}, &apiIntel{})

	w := doSSE(t, r, "/trends")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, parseSSE(t, w.Body.String()))
}
