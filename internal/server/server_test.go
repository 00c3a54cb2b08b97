package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
	"github.com/KaramelBytes/dataloom-cli/internal/dataset"
	"github.com/KaramelBytes/dataloom-cli/internal/narrative"
)

const salesCSV = "date,region,revenue\n2024-01-01,north,10\n2024-01-02,south,20\n2024-01-03,north,30\n"

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Decode == (dataset.DecodeOptions{}) {
		cfg.Decode = dataset.DefaultDecodeOptions()
	}
	if cfg.Logger == nil {
		cfg.Logger = zaptest.NewLogger(t).Sugar()
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func uploadRequest(t *testing.T, filename, contentType, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte(body))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode detail: %v (%s)", err, rec.Body.String())
	}
	return body["detail"]
}

func TestAnalyzeReturnsResult(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "sales.csv", "text/csv", salesCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, k := range []string{"id", "report_summary", "strategies", "insights", "stats", "charts", "plotlyCharts"} {
		if _, ok := got[k]; !ok {
			t.Errorf("response missing %q", k)
		}
	}
	if got["charts"] != nil {
		t.Errorf("charts should be null without a renderer, got %v", got["charts"])
	}
	plotly, _ := got["plotlyCharts"].(map[string]any)
	if _, ok := plotly[analysis.ChartTrendLine]; !ok {
		t.Errorf("trend line missing: %v", plotly)
	}
}

func TestAnalyzeRejectsContentType(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "notes.txt", "text/plain", "hello"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if d := decodeDetail(t, rec); d != "Unsupported file type. Upload CSV or XLSX." {
		t.Fatalf("detail = %q", d)
	}
}

func TestAnalyzeEmptyDatasetIs422(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "empty.csv", "text/csv", "a,b\n"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if d := decodeDetail(t, rec); !strings.Contains(d, "no rows") {
		t.Fatalf("detail = %q", d)
	}
}

func TestAnalyzeDecodeErrorIs400(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "broken.xlsx", "application/octet-stream", "not a zip"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAnalyzeUploadTooLarge(t *testing.T) {
	s := newTestServer(t, Config{MaxUploadBytes: 64})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "big.csv", "text/csv", strings.Repeat("a,b\n1,2\n", 50)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIdenticalUploadsHitCacheAndLookupByID(t *testing.T) {
	s := newTestServer(t, Config{})
	h := s.Handler()
	var ids []string
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, uploadRequest(t, "sales.csv", "text/csv", salesCSV))
		var res analysis.Result
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		ids = append(ids, res.ID)
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Fatalf("expected cached result, ids = %v", ids)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyses/"+ids[0], nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET by id = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyses/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET unknown id = %d", rec.Code)
	}
}

func TestHealthAndCORS(t *testing.T) {
	s := newTestServer(t, Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", rec.Code, body)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/analyze", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", rec.Code)
	}
}

type staticRuntime struct{ reply string }

func (r staticRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: r.reply}}}}, nil
}

func TestAnalyzeAppliesNarrative(t *testing.T) {
	n := &narrative.Narrator{Runtime: staticRuntime{reply: `{"summary":"Model summary","strategies":["one"]}`}}
	s := newTestServer(t, Config{Narrator: n})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "sales.csv", "text/csv", salesCSV))
	var res analysis.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.ReportSummary != "Model summary" || len(res.Strategies) != 3 || res.Strategies[0] != "one" {
		t.Fatalf("narrative not applied: %q %q", res.ReportSummary, res.Strategies)
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t, Config{Addr: "127.0.0.1:0"})
	if err := s.Start(context.Background()); err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestAnalyzeLogsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := newTestServer(t, Config{Logger: zap.New(core).Sugar()})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "sales.csv", "text/csv", salesCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	done := logs.FilterMessage("Analyzed upload").All()
	if len(done) != 1 {
		t.Fatalf("expected one completion log, got %v", logs.All())
	}
	fields := done[0].ContextMap()
	if fields["file"] != "sales.csv" || fields["rows"] != int64(3) || fields["request_id"] == "" {
		t.Fatalf("fields = %v", fields)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "broken.xlsx", "application/octet-stream", "not a zip"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	warned := logs.FilterMessage("Decode failed").All()
	if len(warned) != 1 || warned[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected decode warning, got %v", logs.All())
	}
}
