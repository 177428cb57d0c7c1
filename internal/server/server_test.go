package server_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/petspeakapp/petspeak/internal/analyzer"
	"github.com/petspeakapp/petspeak/internal/analyzer/mock"
	"github.com/petspeakapp/petspeak/internal/config"
	"github.com/petspeakapp/petspeak/internal/credit"
	"github.com/petspeakapp/petspeak/internal/history"
	"github.com/petspeakapp/petspeak/internal/identity"
	"github.com/petspeakapp/petspeak/internal/server"
	"github.com/petspeakapp/petspeak/pkg/types"
)

type testEnv struct {
	srv      *httptest.Server
	provider *mock.Provider
	ledger   *credit.MemoryLedger
	history  *history.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		provider: &mock.Provider{},
		ledger:   credit.NewMemoryLedger(),
		history:  history.NewMemoryStore(),
	}
	s, err := server.New(server.Deps{
		Analyzer:     env.provider,
		ProviderName: "mock",
		Ledger:       env.ledger,
		History:      env.history,
		Profiles:     identity.NewMemoryStore(),
		SignupGrant:  5,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	env.srv = httptest.NewServer(s.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body []byte, contentType string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func analyzeBody(t *testing.T, audio []byte, language string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"audioData": base64.StdEncoding.EncodeToString(audio),
		"language":  language,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.provider.Result = &analyzer.Result{
		Translation:  "I am hungry",
		AnimalType:   types.AnimalCat,
		DetectedNeed: types.NeedHungry,
		Confidence:   85,
	}

	resp, body := env.do(t, http.MethodPost, "/api/analyze", "",
		analyzeBody(t, []byte("fake-wav-bytes"), "en"), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}

	var result analyzer.Result
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Translation != "I am hungry" || result.DetectedNeed != types.NeedHungry {
		t.Errorf("result = %+v", result)
	}
	// Normalization fills everything the provider left out.
	if len(result.Tips) == 0 || result.Action.Title == "" {
		t.Error("tips and action must be defaulted")
	}
	if env.provider.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1", env.provider.CallCount())
	}
	if got := env.provider.Calls[0].Req.Language; got != types.LanguageEnglish {
		t.Errorf("language = %q, want en", got)
	}
}

func TestAnalyze_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing audio", `{"language":"en"}`},
		{"invalid base64", `{"audioData":"!!!not-base64!!!","language":"en"}`},
		{"unsupported language", fmt.Sprintf(`{"audioData":%q,"language":"xx"}`,
			base64.StdEncoding.EncodeToString([]byte("audio")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/analyze", "",
				[]byte(tt.body), "application/json")
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", resp.StatusCode, body)
			}
			var er map[string]string
			if err := json.Unmarshal(body, &er); err != nil || er["error"] == "" {
				t.Errorf("expected error shape, got %s", body)
			}
		})
	}
	// Validation failures must reach the provider zero times.
	if env.provider.CallCount() != 0 {
		t.Errorf("provider calls = %d, want 0", env.provider.CallCount())
	}
}

func TestAnalyze_AnonymousDenied(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{}
	s, err := server.New(server.Deps{
		Analyzer:        provider,
		ProviderName:    "mock",
		Ledger:          credit.NewMemoryLedger(),
		History:         history.NewMemoryStore(),
		Profiles:        identity.NewMemoryStore(),
		AnonymousPolicy: config.AnonymousDenied,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	env := &testEnv{provider: provider, srv: httptest.NewServer(s.Handler())}
	t.Cleanup(env.srv.Close)

	resp, body := env.do(t, http.MethodPost, "/api/analyze", "",
		analyzeBody(t, []byte("audio"), "en"), "application/json")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401; body = %s", resp.StatusCode, body)
	}
	if provider.CallCount() != 0 {
		t.Errorf("provider calls = %d, want 0 — denied requests must not analyze", provider.CallCount())
	}

	resp, body = env.do(t, http.MethodPost, "/api/analyze", "u1",
		analyzeBody(t, []byte("audio"), "en"), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("identified status = %d, body = %s", resp.StatusCode, body)
	}
	if provider.CallCount() != 1 {
		t.Errorf("provider calls = %d, want 1", provider.CallCount())
	}
}

func TestAnalyze_ProviderFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.provider.Err = errors.New("upstream exploded")

	resp, body := env.do(t, http.MethodPost, "/api/analyze", "",
		analyzeBody(t, []byte("audio"), "en"), "application/json")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500; body = %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "failed to analyze audio") {
		t.Errorf("body = %s", body)
	}
}

func recordingForm(t *testing.T, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("audio", "recording.wav")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("RIFF-fake")); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}

func TestRecordings_CreateListDelete(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	body, contentType := recordingForm(t, map[string]string{
		"animalType":    "dog",
		"transcription": "woof woof",
		"detectedNeed":  "playful",
		"confidence":    "75",
		"tips":          `["throw the ball"]`,
	})

	// Identity is required.
	resp, _ := env.do(t, http.MethodPost, "/api/recordings", "", body, contentType)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without identity = %d, want 401", resp.StatusCode)
	}

	resp, respBody := env.do(t, http.MethodPost, "/api/recordings", "u1", body, contentType)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, respBody)
	}
	var created history.Entry
	if err := json.Unmarshal(respBody, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.ID == "" || created.UserID != "u1" || created.DetectedNeed != types.NeedPlayful {
		t.Errorf("created = %+v", created)
	}

	resp, respBody = env.do(t, http.MethodGet, "/api/recordings", "u1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var entries []history.Entry
	if err := json.Unmarshal(respBody, &entries); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != created.ID {
		t.Errorf("entries = %+v", entries)
	}

	// Another user sees nothing and cannot delete.
	resp, respBody = env.do(t, http.MethodGet, "/api/recordings", "u2", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var otherEntries []history.Entry
	if err := json.Unmarshal(respBody, &otherEntries); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(otherEntries) != 0 {
		t.Errorf("u2 entries = %+v, want none", otherEntries)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/recordings/"+created.ID, "u2", nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner delete status = %d, want 403", resp.StatusCode)
	}
	// The entry survives the forbidden delete.
	resp, _ = env.do(t, http.MethodGet, "/api/recordings", "u1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatal("list after forbidden delete failed")
	}

	resp, respBody = env.do(t, http.MethodDelete, "/api/recordings/"+created.ID, "u1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner delete status = %d, body = %s", resp.StatusCode, respBody)
	}
	var ok map[string]bool
	if err := json.Unmarshal(respBody, &ok); err != nil || !ok["success"] {
		t.Errorf("delete body = %s, want {\"success\":true}", respBody)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/recordings/"+created.ID, "u1", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete again status = %d, want 404", resp.StatusCode)
	}
}

func TestRecordings_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"bad animal", map[string]string{"animalType": "dragon", "detectedNeed": "hungry", "confidence": "50"}},
		{"bad need", map[string]string{"animalType": "dog", "detectedNeed": "sleepy", "confidence": "50"}},
		{"bad confidence", map[string]string{"animalType": "dog", "detectedNeed": "hungry", "confidence": "banana"}},
		{"confidence out of range", map[string]string{"animalType": "dog", "detectedNeed": "hungry", "confidence": "150"}},
		{"bad tips", map[string]string{"animalType": "dog", "detectedNeed": "hungry", "confidence": "50", "tips": "{not-an-array"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := recordingForm(t, tt.fields)
			resp, respBody := env.do(t, http.MethodPost, "/api/recordings", "u1", body, contentType)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", resp.StatusCode, respBody)
			}
		})
	}
}

func TestCredits_SignupReserveBalance(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	signup := []byte(`{"email":"u1@example.com","displayName":"User One"}`)
	resp, body := env.do(t, http.MethodPost, "/api/signup", "u1", signup, "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup status = %d, body = %s", resp.StatusCode, body)
	}

	// Repeated signups do not re-grant.
	resp, _ = env.do(t, http.MethodPost, "/api/signup", "u1", signup, "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatal("second signup failed")
	}

	resp, body = env.do(t, http.MethodGet, "/api/credits", "u1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance status = %d", resp.StatusCode)
	}
	var balance map[string]int
	if err := json.Unmarshal(body, &balance); err != nil {
		t.Fatalf("unmarshal balance: %v", err)
	}
	if balance["remaining"] != 5 {
		t.Errorf("remaining = %d, want the signup grant of 5", balance["remaining"])
	}

	resp, body = env.do(t, http.MethodPost, "/api/credits/reserve", "u1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reserve status = %d", resp.StatusCode)
	}
	var reserve struct {
		OK        bool `json:"ok"`
		Remaining int  `json:"remaining"`
	}
	if err := json.Unmarshal(body, &reserve); err != nil {
		t.Fatalf("unmarshal reserve: %v", err)
	}
	if !reserve.OK || reserve.Remaining != 4 {
		t.Errorf("reserve = %+v, want ok with 4 remaining", reserve)
	}

	// Refund restores the credit.
	resp, _ = env.do(t, http.MethodPost, "/api/credits/refund", "u1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refund status = %d", resp.StatusCode)
	}
	resp, body = env.do(t, http.MethodGet, "/api/credits", "u1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatal("balance after refund failed")
	}
	if err := json.Unmarshal(body, &balance); err != nil {
		t.Fatalf("unmarshal balance: %v", err)
	}
	if balance["remaining"] != 5 {
		t.Errorf("remaining after refund = %d, want 5", balance["remaining"])
	}
}

func TestCredits_ExhaustedReservation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/credits/reserve", "broke", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reserve status = %d", resp.StatusCode)
	}
	var reserve struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &reserve); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if reserve.OK {
		t.Error("reservation without credits must be denied")
	}
}

func TestCredits_RequireIdentity(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, ep := range []struct{ method, path string }{
		{http.MethodGet, "/api/credits"},
		{http.MethodPost, "/api/credits/reserve"},
		{http.MethodPost, "/api/credits/refund"},
		{http.MethodPost, "/api/signup"},
	} {
		resp, _ := env.do(t, ep.method, ep.path, "", nil, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", ep.method, ep.path, resp.StatusCode)
		}
	}
}

func TestAdminStats(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	body, contentType := recordingForm(t, map[string]string{
		"animalType":   "cat",
		"detectedNeed": "attention",
		"confidence":   "90",
	})
	if resp, _ := env.do(t, http.MethodPost, "/api/recordings", "u1", body, contentType); resp.StatusCode != http.StatusOK {
		t.Fatal("seed recording failed")
	}

	resp, respBody := env.do(t, http.MethodGet, "/api/admin/stats", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	var stats history.Stats
	if err := json.Unmarshal(respBody, &stats); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if stats.TotalRecordings != 1 || stats.TotalUsers != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.DailyRecordings) != history.StatsWindowDays {
		t.Errorf("daily buckets = %d, want %d", len(stats.DailyRecordings), history.StatsWindowDays)
	}
	if stats.AnimalDistribution["cat"] != 1 {
		t.Errorf("animalDistribution = %v", stats.AnimalDistribution)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, body := env.do(t, http.MethodGet, path, "", nil, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, body = %s", path, resp.StatusCode, body)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/metrics", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}
