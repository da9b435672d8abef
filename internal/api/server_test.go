package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/finagent-ai/finagent"
	"github.com/finagent-ai/finagent/internal/store"
)

type stubRunner struct {
	result finagent.RunResult
	err    error
}

func (s *stubRunner) Run(ctx context.Context, question string) (finagent.RunResult, error) {
	return s.result, s.err
}

func newTestServer() *Server {
	st := store.NewSeededMemoryStore()
	runner := &stubRunner{result: finagent.RunResult{Answer: "根据制度，标准为500元。"}}
	return NewServer(NewLocalClient(st), runner)
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	w := doGet(t, newTestServer(), "/api/health")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "服务运行正常") {
		t.Errorf("code = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestServer_Status(t *testing.T) {
	w := doGet(t, newTestServer(), "/api/reimbursement/status?employee_id=E001")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || len(resp.Data) != 2 || resp.TotalAmount != 1630.5 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Data[0].EmployeeName != "张三" {
		t.Errorf("employee name = %q", resp.Data[0].EmployeeName)
	}
}

func TestServer_StatusMissingParam(t *testing.T) {
	w := doGet(t, newTestServer(), "/api/reimbursement/status")
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "缺少必需参数: employee_id") {
		t.Errorf("code = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestServer_Summary(t *testing.T) {
	w := doGet(t, newTestServer(),
		"/api/reimbursement/summary?employee_id=E001&start_date=2025-03-01&end_date=2025-03-31")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}

	var resp SummaryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.TotalAmount != 1630.5 || resp.Data.Count != 2 {
		t.Errorf("data = %+v", resp.Data)
	}
	if resp.Data.ByCategory["差旅费"] != 1250.5 {
		t.Errorf("by_category = %v", resp.Data.ByCategory)
	}
}

func TestServer_SummaryUnknownEmployee(t *testing.T) {
	w := doGet(t, newTestServer(),
		"/api/reimbursement/summary?employee_id=E999&start_date=2025-03-01&end_date=2025-03-31")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "员工 E999 不存在") {
		t.Errorf("code = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestServer_Ask(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/ask",
		strings.NewReader(`{"question": "差旅费标准是多少？"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "根据制度，标准为500元。") {
		t.Errorf("code = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestHTTPClient_RoundTrip(t *testing.T) {
	ts := httptest.NewServer(newTestServer().Handler())
	defer ts.Close()

	client := NewHTTPClient(ts.URL)
	resp, err := client.Status(context.Background(), StatusRequest{EmployeeID: "E001"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !resp.Success || len(resp.Data) != 2 {
		t.Errorf("resp = %+v", resp)
	}

	summary, err := client.Summary(context.Background(), "E999", "2025-03-01", "2025-03-31", "")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Success || !strings.Contains(summary.Message, "不存在") {
		t.Errorf("summary = %+v", summary)
	}
}

func TestServer_AskMissingQuestion(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("code = %d, body = %s", w.Code, w.Body.String())
	}
}
