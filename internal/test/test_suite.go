// Command-line stress test that simulates concurrent note writes and one
// trend stream read against the API and produces CSV + HTML reports.
package main

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"kokoronote/config"

	"github.com/go-redis/redis/v8"
)

const baseURL = "http://127.0.0.1:8080/api/v1"

var client = &http.Client{Timeout: 150 * time.Second}

type tokenPair struct {
	Access  string
	Refresh string
}

// noteResult 汇总一次笔记写入的行为，方便折叠到报告内。
type noteResult struct {
	Index      int
	Status     int
	MoodType   string
	DurationMs int64
	ErrMessage string
	Timestamp  time.Time
}

// ======================= 基本 HTTP helper =======================

// doJSON serializes a JSON body and sends an authenticated request.
func doJSON(method, url, token string, body any) (int, []byte, error) {
	var buf []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		buf = b
	}
	req, _ := http.NewRequest(method, url, bytes.NewBuffer(buf))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Device", "stress")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data, nil
}

// ======================= 登録 / ログイン Helpers =======================

// registerUser ensures the test account exists (idempotent).
func registerUser(mobile, username, password string) error {
	body := map[string]string{"mobile": mobile, "username": username, "password": password}
	status, _, err := doJSON("POST", baseURL+"/users/register", "", body)
	if err != nil {
		return err
	}
	if status != 200 && status != 400 { // 400 表示已存在（可接受）
		return fmt.Errorf("register status %d", status)
	}
	return nil
}

func loginUser(username, password string) (tokenPair, error) {
	status, data, err := doJSON("POST", baseURL+"/users/login", "",
		map[string]string{"username": username, "password": password})
	if err != nil {
		return tokenPair{}, err
	}
	if status != 200 {
		return tokenPair{}, fmt.Errorf("login status %d body=%s", status, string(data))
	}
	var res map[string]string
	if err := json.Unmarshal(data, &res); err != nil {
		return tokenPair{}, err
	}
	return tokenPair{Access: res["access_token"], Refresh: res["refresh_token"]}, nil
}

// ======================= ノート書き込み Helpers =======================

// createNote posts one journal entry, optionally with a manual mood.
func createNote(token, content string, mood *int) noteResult {
	payload := map[string]any{"content": content}
	if mood != nil {
		payload["mood"] = *mood
	}
	start := time.Now()
	status, data, err := doJSON("POST", baseURL+"/notes", token, payload)
	res := noteResult{Status: status, DurationMs: time.Since(start).Milliseconds(), Timestamp: time.Now()}
	if err != nil {
		res.ErrMessage = err.Error()
		return res
	}
	if status != 201 {
		res.ErrMessage = string(data)
		return res
	}
	var body struct {
		Note struct {
			MoodType string `json:"mood_type"`
		} `json:"note"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		res.MoodType = body.Note.MoodType
	}
	return res
}

// ======================= 基礎功能連通性テスト =======================

// endpointSmokeTests exercises note endpoints with positive and negative cases.
func endpointSmokeTests(token string) error {
	// Empty content must be rejected up front.
	if status, _, err := doJSON("POST", baseURL+"/notes", token, map[string]any{"content": ""}); err != nil || status != http.StatusBadRequest {
		return fmt.Errorf("create (empty content) expected 400, got %d err=%v", status, err)
	}

	// Out-of-range mood must be rejected.
	if status, _, err := doJSON("POST", baseURL+"/notes", token, map[string]any{"content": "ok", "mood": 9}); err != nil || status != http.StatusBadRequest {
		return fmt.Errorf("create (mood=9) expected 400, got %d err=%v", status, err)
	}

	// Valid create returns an estimated mood.
	res := createNote(token, "今日は頭が重くてなかなか眠れなかった", nil)
	if res.Status != http.StatusCreated {
		return fmt.Errorf("create (valid) failed: status=%d err=%s", res.Status, res.ErrMessage)
	}
	if res.MoodType != "estimated" {
		return fmt.Errorf("create (valid) expected estimated mood, got %q", res.MoodType)
	}

	// Manual mood sticks.
	mood := 6
	res = createNote(token, "散歩をして少し気分が良い", &mood)
	if res.Status != http.StatusCreated || res.MoodType != "manual" {
		return fmt.Errorf("create (manual mood) failed: status=%d mood_type=%q", res.Status, res.MoodType)
	}

	// Listing shows what we just wrote.
	status, data, err := doJSON("GET", baseURL+"/notes?limit=10", token, nil)
	if err != nil || status != http.StatusOK {
		return fmt.Errorf("list failed: status=%d err=%v", status, err)
	}
	var listResp struct {
		Notes []map[string]any `json:"notes"`
	}
	if err := json.Unmarshal(data, &listResp); err != nil {
		return fmt.Errorf("list decode failed: %w", err)
	}
	if len(listResp.Notes) < 2 {
		return fmt.Errorf("list expected >=2 notes, got %d", len(listResp.Notes))
	}

	log.Println("endpoint smoke tests passed: note create/list basic scenarios verified")
	return nil
}

// trendStreamTest reads the SSE stream once and counts typed events.
func trendStreamTest(token string) error {
	req, _ := http.NewRequest("GET", baseURL+"/trends", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device", "stress")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("trend stream request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trend stream status %d body=%s", resp.StatusCode, string(data))
	}

	counts := map[string]int{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &ev); err != nil {
			continue
		}
		counts[ev.Type]++
	}
	if counts["trends"] == 0 || counts["summary"] == 0 {
		return fmt.Errorf("trend stream incomplete: %v", counts)
	}
	log.Printf("trend stream verified: trends=%d summary=%d consultation=%d\n",
		counts["trends"], counts["summary"], counts["consultation"])
	return nil
}

// ======================= 并发测试与报告生成 =======================

var sampleContents = []string{
	"朝から頭痛が続いている",
	"よく眠れて気分が良い",
	"仕事が忙しくて疲れた",
	"食欲があまりない",
	"友人と話して少し楽になった",
}

// concurrentNoteTest orchestrates the whole run (write storm -> report).
func concurrentNoteTest(token string, total, maxConcurrent int, outCSV, outHTML string) error {
	jobs := make(chan int, total)
	resCh := make(chan noteResult, total)

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for i := range jobs {
			res := createNote(token, fmt.Sprintf("%s (#%d)", sampleContents[i%len(sampleContents)], i), nil)
			res.Index = i
			resCh <- res
		}
	}

	workers := maxConcurrent
	if workers < 1 {
		workers = 10
	}
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go worker()
	}
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(resCh)

	csvFile, err := os.Create(outCSV)
	if err != nil {
		return err
	}
	defer csvFile.Close()
	csvWriter := csv.NewWriter(csvFile)
	defer csvWriter.Flush()
	_ = csvWriter.Write([]string{"Index", "Status", "MoodType", "DurationMs", "ErrMessage", "Timestamp"})

	var allResults []noteResult
	for r := range resCh {
		_ = csvWriter.Write([]string{
			fmt.Sprintf("%d", r.Index), fmt.Sprintf("%d", r.Status), r.MoodType,
			fmt.Sprintf("%d", r.DurationMs), r.ErrMessage, r.Timestamp.Format(time.RFC3339),
		})
		allResults = append(allResults, r)
	}
	csvWriter.Flush()

	if err := writeHTMLReport(outHTML, allResults); err != nil {
		log.Printf("write HTML report error: %v", err)
	}
	return nil
}

// writeHTMLReport renders a basic table so failures are easy to eyeball.
func writeHTMLReport(path string, results []noteResult) error {
	const tpl = `
<!doctype html>
<html>
<head><meta charset="utf-8"><title>Note Write Test Report</title>
<style>
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 8px; text-align:left }
th { background: #f4f4f4; }
.success { color: green; }
.fail { color: red; }
</style>
</head>
<body>
<h2>Note Write Test Report ({{ .GeneratedAt }})</h2>
<table>
<thead><tr><th>Index</th><th>Status</th><th>MoodType</th><th>DurationMs</th><th>Error</th><th>Timestamp</th></tr></thead>
<tbody>
{{ range .Rows }}
<tr>
<td>{{ .Index }}</td>
<td>{{ .Status }}</td>
<td>{{ .MoodType }}</td>
<td>{{ .DurationMs }}</td>
<td>{{ .ErrMessage }}</td>
<td>{{ .Timestamp }}</td>
</tr>
{{ end }}
</tbody>
</table>
</body>
</html>`

	data := struct {
		GeneratedAt string
		Rows        []noteResult
	}{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Rows:        results,
	}

	t, err := template.New("report").Parse(tpl)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return t.Execute(f, data)
}

// ======================= main =======================

func main() {
	rdb := initRedis()
	username := fmt.Sprintf("stress-%d", time.Now().UnixNano()%1000000)
	password := "StressPwd123!"
	mobile := fmt.Sprintf("13%09d", time.Now().UnixNano()%1000000000)
	totalNotes := 50
	maxConcurrent := 5
	outCSV := "note_report.csv"
	outHTML := "note_report.html"

	if err := registerUser(mobile, username, password); err != nil {
		log.Fatalf("register failed: %v", err)
	}
	tokens, err := loginUser(username, password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	if err := endpointSmokeTests(tokens.Access); err != nil {
		log.Fatalf("endpoint smoke tests failed: %v", err)
	}

	start := time.Now()
	if err := concurrentNoteTest(tokens.Access, totalNotes, maxConcurrent, outCSV, outHTML); err != nil {
		log.Fatalf("concurrent test failed: %v", err)
	}
	elapsed := time.Since(start)
	log.Printf("concurrent test finished in %s, CSV=%s HTML=%s\n", elapsed.String(), outCSV, outHTML)

	// 生成はモデル呼び出しを伴うので最後に1回だけ流す。
	if err := trendStreamTest(tokens.Access); err != nil {
		log.Fatalf("trend stream test failed: %v", err)
	}

	keys, _ := rdb.Keys(rdb.Context(), "kn:*").Result()
	log.Printf("Redis keys after test: %v\n", keys)
	fmt.Println("All stress tests completed successfully!")
}

// 初始化 Redis 并清理测试数据
func initRedis() *redis.Client {
	config.InitConfig("../../")
	config.InitRedis()
	rdb := config.RedisClient
	rdb.FlushDB(rdb.Context())
	fmt.Println("Redis cleared for testing")
	return rdb
}
