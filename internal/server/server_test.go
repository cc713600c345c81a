package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/stargaze/internal/config"
	"github.com/hyperjump/stargaze/internal/metrics"
	"github.com/hyperjump/stargaze/internal/modal"
	"github.com/hyperjump/stargaze/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var testNow = time.Date(2024, time.January, 10, 15, 0, 0, 0, time.UTC)

type fakeArchive struct {
	mu      sync.Mutex
	records []models.ImageRecord
	err     error
	calls   int
	ranges  []models.DateRange
	apiKey  string
	baseURL string
}

func (f *fakeArchive) Fetch(_ context.Context, r models.DateRange) ([]models.ImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ranges = append(f.ranges, r)
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.ImageRecord{}, f.records...), nil
}

func (f *fakeArchive) SetAPIKey(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKey = key
}

func (f *fakeArchive) SetBaseURL(base string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baseURL = base
}

func (f *fakeArchive) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLoader struct {
	mu    sync.Mutex
	dims  modal.Dimensions
	err   error
	calls []string
}

func (l *fakeLoader) Load(_ context.Context, src string) (modal.Dimensions, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, src)
	return l.dims, l.err
}

func (l *fakeLoader) loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func sampleRecords() []models.ImageRecord {
	return []models.ImageRecord{
		{URL: "https://img.example/a.jpg", HDURL: "https://img.example/a_hd.jpg", Date: "2024-01-08", Title: "Pillars", Explanation: "Dust"},
		{URL: "https://img.example/b.jpg", Date: "2024-01-09", Title: "Aurora", Explanation: "Light"},
	}
}

func newTestServer(t *testing.T, archive *fakeArchive, loader modal.Loader, opts ...Option) *Server {
	t.Helper()
	cfg := &config.Config{Archive: config.ArchiveConfig{ImageHosts: []string{"img.example"}}}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewServer(archive, loader, cfg, zap.NewNop(), opts...)
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return out.Error
}

func TestHandleImages(t *testing.T) {
	archive := &fakeArchive{records: sampleRecords()}
	srv := newTestServer(t, archive, nil)
	w := do(t, srv.Routes(), "/api/v1/images?start_date=2024-01-08&end_date=2024-01-09")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var got []models.ImageRecord
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Title != "Pillars" {
		t.Errorf("records: got %+v", got)
	}
	if archive.ranges[0].StartString() != "2024-01-08" || archive.ranges[0].EndString() != "2024-01-09" {
		t.Errorf("range: got %s", archive.ranges[0])
	}
}

func TestHandleImages_BadInput(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		wantIn string
	}{
		{"missing start", "end_date=2024-01-09", "start_date"},
		{"missing end", "start_date=2024-01-08", "end_date"},
		{"bad format", "start_date=01/08/2024&end_date=2024-01-09", "start_date"},
		{"reversed", "start_date=2024-01-09&end_date=2024-01-08", "after"},
		{"future", "start_date=2024-01-08&end_date=2024-02-01", "coverage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := &fakeArchive{}
			srv := newTestServer(t, archive, nil)
			w := do(t, srv.Routes(), "/api/v1/images?"+tt.query)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", w.Code)
			}
			if msg := decodeError(t, w); !strings.Contains(msg, tt.wantIn) {
				t.Errorf("error %q should mention %q", msg, tt.wantIn)
			}
			if archive.callCount() != 0 {
				t.Error("archive must not be called for invalid input")
			}
		})
	}
}

func TestHandleImages_FetchError(t *testing.T) {
	archive := &fakeArchive{err: errors.New("upstream down")}
	srv := newTestServer(t, archive, nil)
	w := do(t, srv.Routes(), "/api/v1/images?start_date=2024-01-08&end_date=2024-01-09")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", w.Code)
	}
	if msg := decodeError(t, w); !strings.Contains(msg, "upstream down") {
		t.Errorf("error: got %q", msg)
	}
}

func TestHandleGallery(t *testing.T) {
	tests := []struct {
		name        string
		archive     *fakeArchive
		query       string
		wantStatus  int
		wantOutcome string
		wantCards   int
		wantMessage string
	}{
		{"rendered", &fakeArchive{records: sampleRecords()}, "start_date=2024-01-08&end_date=2024-01-09", http.StatusOK, "rendered", 2, ""},
		{"empty", &fakeArchive{records: nil}, "start_date=2024-01-08&end_date=2024-01-09", http.StatusOK, "empty", 0, "No images found for this date range."},
		{"invalid", &fakeArchive{}, "start_date=2024-01-08", http.StatusBadRequest, "invalid_input", 0, "Please select a valid date range."},
		{"failed", &fakeArchive{err: errors.New("boom")}, "start_date=2024-01-08&end_date=2024-01-09", http.StatusBadGateway, "failed", 0, "Error fetching images."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.archive, nil)
			w := do(t, srv.Routes(), "/api/v1/gallery?"+tt.query)
			if w.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", w.Code, tt.wantStatus)
			}
			var resp galleryResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if string(resp.Outcome) != tt.wantOutcome {
				t.Errorf("outcome: got %q, want %q", resp.Outcome, tt.wantOutcome)
			}
			if len(resp.Cards) != tt.wantCards {
				t.Errorf("cards: got %d, want %d", len(resp.Cards), tt.wantCards)
			}
			if resp.Message != tt.wantMessage {
				t.Errorf("message: got %q, want %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

func TestHandleGallery_CardFields(t *testing.T) {
	srv := newTestServer(t, &fakeArchive{records: sampleRecords()}, nil)
	w := do(t, srv.Routes(), "/api/v1/gallery?start_date=2024-01-08&end_date=2024-01-09")
	var resp galleryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.StartDate != "2024-01-08" || resp.EndDate != "2024-01-09" {
		t.Errorf("range: got %s..%s", resp.StartDate, resp.EndDate)
	}
	first, second := resp.Cards[0], resp.Cards[1]
	if first.ImageSource != "https://img.example/a_hd.jpg" {
		t.Errorf("first image_source: got %q, want HD url", first.ImageSource)
	}
	if second.ImageSource != "https://img.example/b.jpg" {
		t.Errorf("second image_source: got %q, want url", second.ImageSource)
	}
	for _, c := range resp.Cards {
		if c.RevealDelayMS < 1000 || c.RevealDelayMS >= 2500 {
			t.Errorf("reveal_delay_ms %d outside [1000, 2500)", c.RevealDelayMS)
		}
		if c.ID == "" {
			t.Error("card without id")
		}
	}
	if first.ID == second.ID {
		t.Error("card ids must be unique")
	}
}

func TestHandleModalLayout(t *testing.T) {
	loader := &fakeLoader{dims: modal.Dimensions{Width: 400, Height: 300}}
	srv := newTestServer(t, &fakeArchive{}, loader)
	w := do(t, srv.Routes(), "/api/v1/modal/layout?src=https://img.example/a.jpg&vw=1000&vh=800")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Layout modal.Layout `json:"layout"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	want := modal.Layout{Width: 520, Height: 520, MaxWidth: 980, MaxHeight: 784}
	if out.Layout != want {
		t.Errorf("layout: got %+v, want %+v", out.Layout, want)
	}
}

func TestHandleModalLayout_Errors(t *testing.T) {
	tests := []struct {
		name       string
		loader     modal.Loader
		query      string
		wantStatus int
	}{
		{"missing src", &fakeLoader{}, "vw=1000&vh=800", http.StatusBadRequest},
		{"bad src", &fakeLoader{}, "src=not-a-url", http.StatusBadRequest},
		{"bad viewport", &fakeLoader{}, "src=https://img.example/a.jpg&vw=wide", http.StatusBadRequest},
		{"probe failure", &fakeLoader{err: errors.New("unsupported")}, "src=https://img.example/a.jpg", http.StatusBadGateway},
		{"no loader", nil, "src=https://img.example/a.jpg", http.StatusNotImplemented},
		{"host not allowed", &fakeLoader{}, "src=https://elsewhere.example/a.jpg", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeArchive{}, tt.loader)
			w := do(t, srv.Routes(), "/api/v1/modal/layout?"+tt.query)
			if w.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleModalLayout_RefusesInternalHosts(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer internal.Close()

	for _, src := range []string{
		internal.URL + "/admin",
		"http://localhost/admin",
		"http://169.254.169.254/latest/meta-data",
	} {
		t.Run(src, func(t *testing.T) {
			loader := &fakeLoader{dims: modal.Dimensions{Width: 10, Height: 10}}
			srv := newTestServer(t, &fakeArchive{}, loader)
			w := do(t, srv.Routes(), "/api/v1/modal/layout?src="+url.QueryEscape(src))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d, want 400", w.Code)
			}
			if msg := decodeError(t, w); !strings.Contains(msg, "allowed image host") {
				t.Errorf("error: %q", msg)
			}
			if calls := loader.loaded(); len(calls) != 0 {
				t.Errorf("loader called with %v", calls)
			}
		})
	}
	if hits.Load() != 0 {
		t.Errorf("internal server was contacted %d times", hits.Load())
	}
}

func TestHandleModalLayout_UpstreamErrorIsOpaque(t *testing.T) {
	loader := &fakeLoader{err: errors.New("get http://10.0.0.7/x: unsupported image format")}
	srv := newTestServer(t, &fakeArchive{}, loader)
	w := do(t, srv.Routes(), "/api/v1/modal/layout?src=https://img.example/a.jpg")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "image probe failed" {
		t.Errorf("error leaks upstream detail: %q", msg)
	}
}

func TestHandleIndex_FirstLoad(t *testing.T) {
	archive := &fakeArchive{records: sampleRecords()}
	srv := newTestServer(t, archive, nil)
	w := do(t, srv.Routes(), "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`value="2024-01-01"`, `value="2024-01-10"`, `min="1995-06-16"`, `class="gallery hidden"`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if archive.callCount() != 0 {
		t.Error("first load must not fetch")
	}
}

func TestHandleIndex_Search(t *testing.T) {
	srv := newTestServer(t, &fakeArchive{records: sampleRecords()}, nil)
	w := do(t, srv.Routes(), "/?start_date=2024-01-08&end_date=2024-01-09")
	body := w.Body.String()
	for _, want := range []string{`alt="Pillars"`, `alt="Aurora"`, "animation-delay"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, `class="overlay"`) {
		t.Error("overlay should be closed")
	}
}

func TestHandleIndex_MissingDate(t *testing.T) {
	archive := &fakeArchive{records: sampleRecords()}
	srv := newTestServer(t, archive, nil)
	w := do(t, srv.Routes(), "/?start_date=2024-01-08&end_date=")
	if !strings.Contains(w.Body.String(), "Please select a valid date range.") {
		t.Error("alert not shown")
	}
	if archive.callCount() != 0 {
		t.Error("invalid input must not fetch")
	}
}

func TestHandleIndex_Modal(t *testing.T) {
	loader := &fakeLoader{dims: modal.Dimensions{Width: 400, Height: 300}}
	tests := []struct {
		name        string
		click       string
		wantOverlay bool
	}{
		{"open", "", true},
		{"panel click keeps open", "panel", true},
		{"backdrop click closes", "overlay", false},
		{"close control closes", "close", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeArchive{records: sampleRecords()}, loader)
			target := "/?start_date=2024-01-08&end_date=2024-01-09&open=2024-01-08&vw=1000&vh=800"
			if tt.click != "" {
				target += "&click=" + tt.click
			}
			body := do(t, srv.Routes(), target).Body.String()
			if got := strings.Contains(body, `class="overlay"`); got != tt.wantOverlay {
				t.Fatalf("overlay shown: got %v, want %v", got, tt.wantOverlay)
			}
			if !tt.wantOverlay {
				return
			}
			if !strings.Contains(body, `src="https://img.example/a_hd.jpg"`) {
				t.Error("modal should show the HD image")
			}
			if !strings.Contains(body, "width: 520px; height: 520px;") {
				t.Error("panel not sized from the image")
			}
		})
	}
}

func TestApplyConfig(t *testing.T) {
	archive := &fakeArchive{}
	srv := newTestServer(t, archive, nil)
	srv.ApplyConfig(&config.Config{
		Server:  config.ServerConfig{Port: 9999},
		Archive: config.ArchiveConfig{APIKey: "rotated", BaseURL: "https://mirror.example"},
		Gallery: config.GalleryConfig{MinRevealDelay: 10 * time.Millisecond, MaxRevealDelay: 20 * time.Millisecond},
	})
	if archive.apiKey != "rotated" || archive.baseURL != "https://mirror.example" {
		t.Errorf("archive not updated: key %q base %q", archive.apiKey, archive.baseURL)
	}
	cfg := srv.Config()
	if cfg.Server.Port != 8080 {
		t.Errorf("server address must not change on reload, got port %d", cfg.Server.Port)
	}
	if cfg.Gallery.MaxRevealDelay != 20*time.Millisecond {
		t.Errorf("gallery delay: got %v", cfg.Gallery.MaxRevealDelay)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, &fakeArchive{}, nil, WithMetrics(m, reg))
	h := srv.Routes()
	if w := do(t, h, "/health"); w.Code != http.StatusOK {
		t.Fatalf("health: got %d", w.Code)
	}
	w := do(t, h, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `http_requests_total{method="GET",path="/health",status="200"} 1`) {
		t.Errorf("request not counted:\n%s", w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeArchive{}, nil)
	r := httptest.NewRequest(http.MethodOptions, "/api/v1/gallery", nil)
	r.Header.Set("Origin", "https://example.org")
	r.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin: got %q", got)
	}
}
