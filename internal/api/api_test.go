package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mindscan-ai/mindscan/internal/flow"
	"github.com/mindscan-ai/mindscan/internal/genai"
	"github.com/mindscan-ai/mindscan/internal/models"
	"github.com/mindscan-ai/mindscan/internal/share"
	"github.com/mindscan-ai/mindscan/internal/store"
)

const stubTraitAnalysis = `**타고난 기질**: 신중한 타입입니다.
**소통 스타일**: 짧은 메시지를 선호합니다.
**공략 포인트**: 기다려주세요.`

const stubScenarioResponse = `[종합 분석]
연락 빈도가 급감한 상황입니다.

##A##
[거리두기]
부담을 느끼는 중입니다.

##B##
[과로]
여력이 없습니다.`

const stubChatReply = `{"reply":"어 미안","emotion":"😅","thoughts":"귀찮다","tips":"가볍게","warning":"추궁 금지"}`

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Generate(ctx context.Context, p, image string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	switch {
	case strings.Contains(p, "프로파일러"):
		return stubTraitAnalysis, nil
	case strings.Contains(p, "관계 분석 전문가"):
		return stubScenarioResponse, nil
	default:
		return stubChatReply, nil
	}
}

func newTestServer(t *testing.T, gen flow.Generator) *httptest.Server {
	t.Helper()
	f := flow.NewFlow(store.NewInMemoryStore(), gen)
	s := NewServer(f, share.NewCardRenderer())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, models.APIResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("response is not a JSON envelope: %v", err)
	}
	return resp, envelope
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp, envelope := doJSON(t, http.MethodPost, base+"/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session returned %d", resp.StatusCode)
	}
	result, ok := envelope.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", envelope.Result)
	}
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatal("create session returned no id")
	}
	return id
}

func advanceToChat(t *testing.T, base, id string) {
	t.Helper()
	steps := []struct {
		path string
		body interface{}
	}{
		{"/start", nil},
		{"/profile", models.TargetProfile{RelationType: "연인/썸", Name: "Kim", Gender: "남성", BirthDate: "1998-07-02", CalendarSystem: "양력"}},
		{"/analysis", nil},
		{"/continue", nil},
		{"/situation", situationRequest{Text: "no reply since yesterday"}},
		{"/diagnosis", nil},
		{"/scenario", scenarioRequest{Label: "A"}},
	}
	for _, step := range steps {
		resp, envelope := doJSON(t, http.MethodPost, base+"/sessions/"+id+step.path, step.body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s returned %d: %s", step.path, resp.StatusCode, envelope.Message)
		}
	}
}

func TestFullJourneyOverHTTP(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts.URL)
	advanceToChat(t, ts.URL, id)

	resp, envelope := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/chat", chatRequest{Message: "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat returned %d: %s", resp.StatusCode, envelope.Message)
	}
	reply, ok := envelope.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %T", envelope.Result)
	}
	if reply["reply"] != "어 미안" {
		t.Errorf("unexpected reply: %v", reply)
	}

	// The session snapshot reflects both turns.
	resp, envelope = doJSON(t, http.MethodGet, ts.URL+"/sessions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session returned %d", resp.StatusCode)
	}
	snapshot := envelope.Result.(map[string]interface{})
	history, _ := snapshot["chat_history"].([]interface{})
	if len(history) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(history))
	}
}

func TestChatStreaming(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts.URL)
	advanceToChat(t, ts.URL, id)

	raw, err := json.Marshal(chatRequest{Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/sessions/"+id+"/chat?stream=1", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	body := buf.String()
	if !strings.Contains(body, "data: ") {
		t.Error("expected data events in stream")
	}
	if !strings.Contains(body, "event: done") {
		t.Error("expected terminal done event")
	}
}

func TestProfileValidationReturns400(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts.URL)
	doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/start", nil)

	resp, envelope := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/profile",
		models.TargetProfile{Name: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if envelope.Status != string(models.APIStatusError) {
		t.Errorf("expected error envelope, got %+v", envelope)
	}
}

func TestInvalidTransitionReturns409(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts.URL)

	// Profile submission straight from LANDING skips the start action.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/profile",
		models.TargetProfile{Name: "Kim"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/sessions/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDisabledGatewayReturns503(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{err: genai.ErrDisabled})
	id := createSession(t, ts.URL)
	doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/start", nil)
	doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/profile",
		models.TargetProfile{Name: "Kim"})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/analysis", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestGenerationFailureReturns502(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{err: context.DeadlineExceeded})
	id := createSession(t, ts.URL)
	doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/start", nil)
	doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/profile",
		models.TargetProfile{Name: "Kim"})

	resp, envelope := doJSON(t, http.MethodPost, ts.URL+"/sessions/"+id+"/analysis", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}
	if !strings.HasPrefix(envelope.Message, "분석 실패: ") {
		t.Errorf("expected inline failure message, got %q", envelope.Message)
	}
}

func TestShareCard(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts.URL)
	advanceToChat(t, ts.URL, id)

	resp, err := http.Get(ts.URL + "/sessions/" + id + "/share-card")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("share card returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("unexpected content type %q", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("response is not a PNG")
	}
}

func TestShareCardRequiresAnalysis(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	id := createSession(t, ts.URL)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/sessions/"+id+"/share-card", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestQREndpoint(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	resp, envelope := doJSON(t, http.MethodGet, ts.URL+"/share/qr", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("qr returned %d", resp.StatusCode)
	}
	result := envelope.Result.(map[string]interface{})
	uri, _ := result["qr_data_uri"].(string)
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("unexpected data URI: %.40s", uri)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubGenerator{})
	resp, envelope := doJSON(t, http.MethodGet, ts.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}
	if envelope.Status != string(models.APIStatusOK) {
		t.Errorf("unexpected envelope: %+v", envelope)
	}
}
