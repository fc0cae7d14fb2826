package ai

import (
	"fmt"
	"strings"
	"time"

	"kokoronote/model"
)

// jst 所有提示词中的日期都按东京时区渲染
var jst = time.FixedZone("JST", 9*60*60)

const (
	moodSystemPrompt = `あなたは短い日記の気分を評価します。
1〜7の整数で答えること。1-2は強い不調、3-5は中立・混在、6-7は好調。
数字のみを出力すること。`

	trendListSystemPrompt = `心療内科に通っている人のSNSの過去ポストです。
症状のトレンドをTwitter（現X）のトレンド風にまとめてください。
トレンドリストに表示するので、簡潔な単語にすること。
重要そうなトレンドから並べること。
JSONオブジェクト {"trends": ["...", ...]} のみを出力すること。`

	trendSummarySystemPrompt = `心療内科に通っている人のSNSの過去ポストとトレンドリストから、患者の体調のまとめを作成します。
このまとめはmarkdownで、患者自身が読みます。
読む負担を抑えるためにそこそこ簡潔に、トレンドにある症状の改善案をコンテンツとし、それだけ出力すること。
「承知いたしました」等は不要です。
今日の日付は%sです。`

	consultationSearchSystemPrompt = `心療内科に通っている人のSNSの過去ポストとトレンドリストから、患者が医師に相談する際の相談例を生成することが目的です。
直近のポストとトレンドを基にポストの検索を行うことでさらに過去のポストを参照できます。
検索クエリを JSONオブジェクト {"queries": ["...", ...]} のみで出力すること。`

	consultationSystemPrompt = `心療内科に通っている人のSNSの過去ポストとトレンドリストから、患者が医師に相談する際の相談例を生成することが目的です。
症状について相談する際の文面のみ、markdownで出力すること。
承知しましたなどは不要です。
今日の日付は%sです。`

	doctorPromptsSystemPrompt = `心療内科医がしそうな質問を3~5個生成すること。
JSONオブジェクト {"suggestions": ["...", ...]} のみを出力すること。`

	patientRepliesSystemPrompt = `心療内科に通う患者になりきってください。
ユーザーの過去ポストを参考に、心療内科医への返答候補を3~5個生成すること。
ユーザーの過去ポストの内容を引用できるとより良いです。
質問候補のみ出力すること。
JSONオブジェクト {"suggestions": ["...", ...]} のみを出力すること。

## トレンド
%s

## ユーザーの過去ポスト
%s`
)

// formatNoteHistory renders notes oldest-first, the way the prompts expect.
// 入力は新しい順で渡されるため、ここで反転する。
func formatNoteHistory(notes []model.Note) string {
	var b strings.Builder
	for i := len(notes) - 1; i >= 0; i-- {
		n := notes[i]
		b.WriteString("---\n## 日付\n")
		b.WriteString(n.Timestamp.In(jst).Format("2006年1月2日 15:04:05"))
		b.WriteString("\n## 内容\n")
		b.WriteString(n.Content)
		b.WriteString("\n---\n")
	}
	return b.String()
}

func formatToday() string {
	return time.Now().In(jst).Format("2006年1月2日 15:04:05")
}

// notesAndTrendsPrompt 趋势/相談生成共通のユーザーメッセージ
func notesAndTrendsPrompt(notes []model.Note, trends []string) string {
	return fmt.Sprintf("## トレンドリスト\n```\n%s\n```\n\n## ユーザーの過去ポスト\n```\n%s\n```\n",
		strings.Join(trends, "\n- "), formatNoteHistory(notes))
}

func notesOnlyPrompt(notes []model.Note) string {
	return fmt.Sprintf("ユーザーの過去ポスト\n```\n%s\n```\n", formatNoteHistory(notes))
}
