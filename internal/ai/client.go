package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"kokoronote/config"
	"kokoronote/model"
)

// Temperature for the trend/consultation flows; kept low so repeated
// generations over the same notes stay stable.
const generationTemperature = 0.1

// similarLimit is the per-query k for consultation retrieval.
const similarLimit = 3

// SimilarityLookup resolves an embedding vector to the owner's most similar
// notes. Injected by the caller so the adapter stays storage-agnostic.
type SimilarityLookup func(ctx context.Context, embedding []float32, k int) ([]model.Note, error)

// Client wraps the generative model and the embedding endpoint behind the
// operations this service needs. 单一实例在启动时构建并注入。
type Client struct {
	client *openai.Client
	cfg    config.OpenAIConfig
	logger *zap.Logger
}

func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) *Client {
	return &Client{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: logger,
	}
}

// EstimateMood scores a note on the 1-7 scale. Fails soft: any transport or
// parse failure yields the neutral midpoint, never an error.
func (c *Client) EstimateMood(ctx context.Context, text string) int {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: moodSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   8,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Warn("mood estimation failed, using neutral fallback", zap.Error(err))
		return model.MoodNeutral
	}
	content, err := firstChoice(resp)
	if err != nil {
		c.logger.Warn("mood estimation failed, using neutral fallback", zap.Error(err))
		return model.MoodNeutral
	}
	mood, err := parseMoodScore(content)
	if err != nil {
		c.logger.Warn("mood response unparseable, using neutral fallback",
			zap.String("response", content))
		return model.MoodNeutral
	}
	return mood
}

// firstChoice guards against a 200 response carrying an empty choices array,
// which the client would otherwise index blindly.
func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// parseMoodScore rounds and clamps the model output into [MoodMin, MoodMax].
func parseMoodScore(raw string) (int, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	mood := int(math.Round(value))
	if mood < model.MoodMin {
		mood = model.MoodMin
	}
	if mood > model.MoodMax {
		mood = model.MoodMax
	}
	return mood, nil
}

// GetEmbedding requests a fixed-dimension semantic vector. Returns nil on
// failure so callers proceed without similarity search.
func (c *Client) GetEmbedding(ctx context.Context, text string) []float32 {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Dimensions: c.cfg.EmbeddingDimensions,
	})
	if err != nil || len(resp.Data) == 0 {
		c.logger.Warn("embedding generation failed", zap.Error(err))
		return nil
	}
	return resp.Data[0].Embedding
}

// GenerateTrendThemes summarizes the note window into ranked terse labels.
// ここから先の生成系はフォールバックせずエラーを返す。
func (c *Client) GenerateTrendThemes(ctx context.Context, notes []model.Note) ([]string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: trendListSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: notesOnlyPrompt(notes)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: generationTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("trend themes: %w", err)
	}
	content, err := firstChoice(resp)
	if err != nil {
		return nil, fmt.Errorf("trend themes: %w", err)
	}
	var parsed struct {
		Trends []string `json:"trends"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("trend themes: unparseable response: %w", err)
	}
	if len(parsed.Trends) == 0 {
		return nil, errors.New("trend themes: empty trend list")
	}
	return parsed.Trends, nil
}

// StreamSummary produces the narrative summary as an incremental stream.
func (c *Client) StreamSummary(ctx context.Context, notes []model.Note, trends []string) (*TextStream, error) {
	return c.streamCompletion(ctx,
		fmt.Sprintf(trendSummarySystemPrompt, formatToday()),
		notesAndTrendsPrompt(notes, trends))
}

// GenerateConsultationScript is a two-phase generation: the model first
// proposes similarity-search queries, the matches enlarge the note context,
// then a second call streams the consultation text.
func (c *Client) GenerateConsultationScript(ctx context.Context, notes []model.Note, trends []string, lookup SimilarityLookup) (*TextStream, error) {
	queries, err := c.proposeSearchQueries(ctx, notes, trends)
	if err != nil {
		return nil, err
	}
	enlarged := c.retrieveSimilar(ctx, notes, queries, lookup)
	return c.streamCompletion(ctx,
		fmt.Sprintf(consultationSystemPrompt, formatToday()),
		notesAndTrendsPrompt(enlarged, trends))
}

func (c *Client) proposeSearchQueries(ctx context.Context, notes []model.Note, trends []string) ([]string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: consultationSearchSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: notesAndTrendsPrompt(notes, trends)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: generationTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("consultation queries: %w", err)
	}
	content, err := firstChoice(resp)
	if err != nil {
		return nil, fmt.Errorf("consultation queries: %w", err)
	}
	var req SimilaritySearchRequest
	if err := json.Unmarshal([]byte(content), &req); err != nil {
		return nil, fmt.Errorf("consultation queries: unparseable response: %w", err)
	}
	return req.Sanitize(), nil
}

// retrieveSimilar runs the per-query lookups concurrently, then merges the
// matches with the recent window: dedupe by note id, newest first.
// 個々の検索失敗は握りつぶし、直近ノートだけで続行する。
func (c *Client) retrieveSimilar(ctx context.Context, notes []model.Note, queries []string, lookup SimilarityLookup) []model.Note {
	if len(queries) == 0 || lookup == nil {
		return notes
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	found := make([]model.Note, 0, len(queries)*similarLimit)
	for _, q := range queries {
		wg.Add(1)
		go func(query string) {
			defer wg.Done()
			vec := c.GetEmbedding(ctx, query)
			if vec == nil {
				return
			}
			matches, err := lookup(ctx, vec, similarLimit)
			if err != nil {
				c.logger.Warn("similarity lookup failed", zap.String("query", query), zap.Error(err))
				return
			}
			mu.Lock()
			found = append(found, matches...)
			mu.Unlock()
		}(q)
	}
	wg.Wait()

	merged := make(map[string]model.Note, len(notes)+len(found))
	for _, n := range notes {
		merged[n.ID] = n
	}
	for _, n := range found {
		if _, ok := merged[n.ID]; !ok {
			merged[n.ID] = n
		}
	}
	all := make([]model.Note, 0, len(merged))
	for _, n := range merged {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	return all
}

// GenerateDoctorPrompts proposes the clinician's plausible next questions.
func (c *Client) GenerateDoctorPrompts(ctx context.Context, messages []model.ConversationMessage) ([]string, error) {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chat = append(chat, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: doctorPromptsSystemPrompt,
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == model.RoleDoctor {
			role = openai.ChatMessageRoleAssistant
		}
		chat = append(chat, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return c.generateSuggestions(ctx, chat)
}

// GeneratePatientReplies proposes the patient's next answers, conditioned on
// the recent note history and the known trend themes.
func (c *Client) GeneratePatientReplies(ctx context.Context, messages []model.ConversationMessage, notes []model.Note, trends []string) ([]string, error) {
	system := fmt.Sprintf(patientRepliesSystemPrompt,
		strings.Join(trends, "\n- "), formatNoteHistory(notes))
	chat := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chat = append(chat, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: system,
	})
	// 患者役を生成するので、医師の発言が user 側になる。
	for _, m := range messages {
		role := openai.ChatMessageRoleAssistant
		if m.Role == model.RoleDoctor {
			role = openai.ChatMessageRoleUser
		}
		chat = append(chat, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return c.generateSuggestions(ctx, chat)
}

func (c *Client) generateSuggestions(ctx context.Context, chat []openai.ChatCompletionMessage) ([]string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    chat,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("suggestions: %w", err)
	}
	content, err := firstChoice(resp)
	if err != nil {
		return nil, fmt.Errorf("suggestions: %w", err)
	}
	var parsed struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("suggestions: unparseable response: %w", err)
	}
	if len(parsed.Suggestions) == 0 {
		return nil, errors.New("suggestions: empty list")
	}
	if len(parsed.Suggestions) > 5 {
		parsed.Suggestions = parsed.Suggestions[:5]
	}
	return parsed.Suggestions, nil
}

// streamCompletion starts a streaming chat completion and forwards each
// delta over a TextStream. Cancelling ctx stops the producer goroutine.
func (c *Client) streamCompletion(ctx context.Context, system, user string) (*TextStream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: generationTemperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("stream start: %w", err)
	}

	out := newTextStream()
	go func() {
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out.finish(nil)
				return
			}
			if err != nil {
				out.finish(fmt.Errorf("stream recv: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out.ch <- delta:
			case <-ctx.Done():
				out.finish(ctx.Err())
				return
			}
		}
	}()
	return out, nil
}
