package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kokoronote/model"
)

func newSimulationService(store *fakeStore, intel *fakeIntel) *SimulationService {
	return NewSimulationService(store, intel, 30, 100, zap.NewNop())
}

func msg(role, content string) model.ConversationMessage {
	return model.ConversationMessage{Role: role, Content: content}
}

func TestOpeningMessage(t *testing.T) {
	opening := OpeningMessage()
	assert.Equal(t, model.RoleDoctor, opening.Role)
	assert.Equal(t, "体調はどうですか？", opening.Content)
	assert.Len(t, opening.Suggestions, 4)
}

func TestSuggestRejectsMalformedConversations(t *testing.T) {
	svc := newSimulationService(&fakeStore{}, &fakeIntel{})

	cases := [][]model.ConversationMessage{
		nil,
		{msg(model.RoleUser, "こんにちは")},                                                       // 医師から始まらない
		{msg(model.RoleDoctor, "どうぞ"), msg(model.RoleDoctor, "続けて")},                         // 交互でない
		{msg(model.RoleDoctor, "どうぞ"), msg("nurse", "はい")},                                   // 未知の役割
		{msg(model.RoleDoctor, "体調はどうですか？"), msg(model.RoleUser, "   ")},                     // 末尾が空
		{msg(model.RoleDoctor, "どうぞ"), msg(model.RoleUser, "はい"), msg(model.RoleUser, "それで")}, // 途中から崩れる
	}
	for i, history := range cases {
		_, _, err := svc.Suggest(context.Background(), 1, history)
		assert.ErrorIs(t, err, ErrValidation, "case %d", i)
	}
}

func TestSuggestAfterUserTurnProposesDoctorQuestions(t *testing.T) {
	intel := &fakeIntel{doctorSuggestions: []string{"いつからですか？", "眠れていますか？", "食欲はありますか？"}}
	svc := newSimulationService(&fakeStore{}, intel)

	history := []model.ConversationMessage{
		msg(model.RoleDoctor, "体調はどうですか？"),
		msg(model.RoleUser, "最近眠れていません"),
	}
	suggestions, role, err := svc.Suggest(context.Background(), 1, history)
	require.NoError(t, err)

	assert.Equal(t, model.RoleDoctor, role)
	assert.Len(t, suggestions, 3)
	assert.Equal(t, 1, intel.doctorCalls)
	assert.Equal(t, 0, intel.patientCalls)
}

func TestSuggestAfterDoctorTurnUsesNotesAndTrends(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, store.CreateNote(&model.Note{
		UserID:  1,
		Content: "頭痛がひどい",
		Trend:   &model.Trend{Trends: []string{"頭痛"}, Summary: "要約"},
	}))
	require.NoError(t, store.CreateNote(&model.Note{UserID: 1, Content: "今日は少し楽"}))
	// 窓の外のノートは文脈に含めない。
	old := &model.Note{UserID: 1, Content: "去年のメモ"}
	require.NoError(t, store.CreateNote(old))
	old.Timestamp = time.Now().AddDate(0, 0, -60)
	store.notes[0].Timestamp = old.Timestamp

	intel := &fakeIntel{patientSuggestions: []string{"頭痛が続いています", "眠りが浅いです", "食欲がありません"}}
	svc := newSimulationService(store, intel)

	history := []model.ConversationMessage{msg(model.RoleDoctor, "体調はどうですか？")}
	suggestions, role, err := svc.Suggest(context.Background(), 1, history)
	require.NoError(t, err)

	assert.Equal(t, model.RoleUser, role)
	assert.Len(t, suggestions, 3)
	assert.Equal(t, 1, intel.patientCalls)
	assert.Len(t, intel.patientNotes, 2)
	assert.NotContains(t, noteContents(intel.patientNotes), "去年のメモ")
}

func noteContents(notes []model.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Content)
	}
	return out
}

func TestSuggestWorksWithoutNotesOrTrends(t *testing.T) {
	intel := &fakeIntel{patientSuggestions: []string{"特に変わりありません", "少し疲れています", "眠れています"}}
	svc := newSimulationService(&fakeStore{}, intel)

	history := []model.ConversationMessage{msg(model.RoleDoctor, "体調はどうですか？")}
	_, role, err := svc.Suggest(context.Background(), 1, history)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, role)
	assert.Empty(t, intel.patientTrends)
}

func TestSuggestWrapsGenerationFailure(t *testing.T) {
	svc := newSimulationService(&fakeStore{}, &fakeIntel{suggestErr: errBoom})

	history := []model.ConversationMessage{
		msg(model.RoleDoctor, "体調はどうですか？"),
		msg(model.RoleUser, "眠れません"),
	}
	_, _, err := svc.Suggest(context.Background(), 1, history)
	assert.ErrorIs(t, err, ErrGeneration)
}
