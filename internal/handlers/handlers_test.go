package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"thumbcrafter/internal/candidates"
	"thumbcrafter/internal/engine"
	"thumbcrafter/internal/metrics"
	"thumbcrafter/internal/startup"

	"github.com/disintegration/imaging"
)

type fakeGenerator struct {
	result engine.Result
	stats  metrics.Stats

	mu    sync.Mutex
	input engine.ProjectInput
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, input engine.ProjectInput) engine.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.input = input
	g.calls++
	return g.result
}

func (g *fakeGenerator) GetStats() metrics.Stats { return g.stats }

type fakePauser bool

func (p fakePauser) Paused() bool { return bool(p) }

func (p fakePauser) Usage() float64 {
	if p {
		return 0.9
	}
	return 0.4
}

func newTestHandlers(gen Generator) *Handlers {
	return New(gen, nil, &startup.Config{MaxUploadMB: 100, FFmpegAvailable: true, FFprobeAvailable: true})
}

type part struct {
	field, filename, contentType string
	data                         []byte
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(32, 18, color.NRGBA{G: 200, A: 255}), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target, description string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if description != "" {
		if err := mw.WriteField("description", description); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range parts {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.filename+`"`)
		hdr.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func compositeResult() engine.Result {
	return engine.Result{
		RunID:  "run-1",
		Branch: engine.BranchImages,
		Candidates: []candidates.Candidate{
			{
				ID:          "numeric-1",
				Title:       "Fotos 1 y 2",
				Description: "Combinación de las fotos mencionadas",
				Kind:        candidates.CompositeImage,
				Sources:     []int{0, 1},
				Preview:     imaging.New(400, 225, color.NRGBA{B: 255, A: 255}),
			},
			{ID: "broken", Kind: candidates.SingleImage},
		},
	}
}

func TestGenerateImages(t *testing.T) {
	gen := &fakeGenerator{result: compositeResult()}
	h := newTestHandlers(gen)
	img := pngBytes(t)

	req := multipartRequest(t, "/api/generate", "  foto 1 y foto 2 ",
		part{"images", "playa.png", "image/png", img},
		part{"images", "perro.png", "image/png", img},
	)
	w := httptest.NewRecorder()
	h.Generate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if gen.input.Description != "foto 1 y foto 2" {
		t.Errorf("description = %q", gen.input.Description)
	}
	if len(gen.input.Images) != 2 || gen.input.Video != nil {
		t.Fatalf("input: %d images, video %v", len(gen.input.Images), gen.input.Video != nil)
	}
	if gen.input.Images[1].Name() != "perro.png" {
		t.Errorf("image order not kept: %s", gen.input.Images[1].Name())
	}

	var resp GenerateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != "run-1" || resp.Branch != engine.BranchImages {
		t.Errorf("runId/branch = %s/%s", resp.RunID, resp.Branch)
	}
	// The candidate without a preview is dropped.
	if len(resp.Candidates) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(resp.Candidates))
	}
	c := resp.Candidates[0]
	if !strings.HasPrefix(c.Preview, "data:image/jpeg;base64,") {
		t.Errorf("preview prefix = %.30s", c.Preview)
	}
	if c.Width != 400 || c.Height != 225 || c.Timestamp != nil {
		t.Errorf("candidate = %+v", c)
	}
	if len(c.Sources) != 2 || c.Sources[1] != 1 {
		t.Errorf("sources = %v", c.Sources)
	}
}

func TestGenerateVideoFrames(t *testing.T) {
	gen := &fakeGenerator{result: engine.Result{
		RunID:  "run-2",
		Branch: engine.BranchVideo,
		Candidates: []candidates.Candidate{{
			ID:      "frame-1",
			Title:   "Fotograma 0.0s",
			Kind:    candidates.VideoFrame,
			Preview: imaging.New(64, 36, color.NRGBA{R: 255, A: 255}),
		}},
	}}
	h := newTestHandlers(gen)

	video := append([]byte("\x00\x00\x00\x18ftypmp42"), make([]byte, 64)...)
	req := multipartRequest(t, "/api/generate?format=webp&preset=instagram", "",
		part{"video", "clip.mp4", "video/mp4", video},
	)
	w := httptest.NewRecorder()
	h.Generate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if gen.input.Video == nil || gen.input.Video.Name() != "clip.mp4" {
		t.Fatal("video not passed to the generator")
	}

	var resp GenerateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	c := resp.Candidates[0]
	if c.Timestamp == nil || *c.Timestamp != 0 {
		t.Errorf("frame timestamp = %v, want 0", c.Timestamp)
	}
	if !strings.HasPrefix(c.Preview, "data:image/webp;base64,") {
		t.Errorf("preview prefix = %.30s", c.Preview)
	}
}

func TestGenerateSuperseded(t *testing.T) {
	gen := &fakeGenerator{result: engine.Result{RunID: "old", Superseded: true}}
	h := newTestHandlers(gen)

	req := multipartRequest(t, "/api/generate", "x", part{"images", "a.png", "image/png", pngBytes(t)})
	w := httptest.NewRecorder()
	h.Generate(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.RunID != "old" || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestGenerateRejectsUploads(t *testing.T) {
	img := pngBytes(t)

	tests := []struct {
		name   string
		target string
		parts  []part
		small  bool
		want   int
	}{
		{"text file", "/api/generate", []part{{"images", "notes.txt", "text/plain", []byte("hola mundo")}}, false, http.StatusUnsupportedMediaType},
		{"image too large", "/api/generate", []part{{"images", "big.png", "image/png", img}}, true, http.StatusRequestEntityTooLarge},
		{"empty image", "/api/generate", []part{{"images", "empty.png", "image/png", nil}}, false, http.StatusBadRequest},
		{"two videos", "/api/generate", []part{
			{"video", "a.mp4", "video/mp4", []byte("\x00\x00\x00\x18ftypmp42")},
			{"video", "b.mp4", "video/mp4", []byte("\x00\x00\x00\x18ftypmp42")},
		}, false, http.StatusUnsupportedMediaType},
		{"unknown preset", "/api/generate?preset=vhs", nil, false, http.StatusBadRequest},
		{"unknown format", "/api/generate?format=tiff", nil, false, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			h := newTestHandlers(gen)
			if tt.small {
				h.limits.MaxImageBytes = 16
			}

			w := httptest.NewRecorder()
			h.Generate(w, multipartRequest(t, tt.target, "d", tt.parts...))

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if gen.calls != 0 {
				t.Error("generator should not run for a rejected upload")
			}
		})
	}
}

func TestGenerateNotMultipart(t *testing.T) {
	h := newTestHandlers(&fakeGenerator{})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"description":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.Generate(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetPresets(t *testing.T) {
	h := newTestHandlers(&fakeGenerator{})
	w := httptest.NewRecorder()
	h.GetPresets(w, httptest.NewRequest(http.MethodGet, "/api/presets", http.NoBody))

	var resp PresetsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Styles) != 3 || resp.Styles[0].Key != "dynamic" {
		t.Errorf("styles = %+v", resp.Styles)
	}
	if len(resp.Presets) != 4 || resp.Presets[0].Name != "instagram" {
		t.Errorf("presets = %+v", resp.Presets)
	}
	if resp.MaxCandidates != 12 {
		t.Errorf("maxCandidates = %d", resp.MaxCandidates)
	}
}

func TestHealthCheck(t *testing.T) {
	gen := &fakeGenerator{stats: metrics.Stats{RunsStarted: 3, RunsSuperseded: 1, LastRunCandidates: 7}}

	tests := []struct {
		name       string
		config     startup.Config
		pauser     Pauser
		wantStatus string
		wantUsage  float64
		wantPaused bool
	}{
		{"healthy", startup.Config{FFmpegAvailable: true, FFprobeAvailable: true}, nil, statusHealthy, 0, false},
		{"no ffmpeg", startup.Config{FFprobeAvailable: true}, nil, statusDegraded, 0, false},
		{"memory pressure", startup.Config{FFmpegAvailable: true, FFprobeAvailable: true}, fakePauser(true), statusHealthy, 0.9, true},
		{"memory ok", startup.Config{FFmpegAvailable: true, FFprobeAvailable: true}, fakePauser(false), statusHealthy, 0.4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(gen, tt.pauser, &tt.config)
			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			if w.Code != http.StatusOK {
				t.Errorf("status code = %d", w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if resp.RunsStarted != 3 || resp.RunsSuperseded != 1 || resp.LastRunCandidates != 7 {
				t.Errorf("stats not reported: %+v", resp)
			}
			if resp.MemoryUsage != tt.wantUsage || resp.MemoryPaused != tt.wantPaused || resp.Ready == tt.wantPaused {
				t.Errorf("memory = (usage %v, paused %v, ready %v), want (%v, %v)",
					resp.MemoryUsage, resp.MemoryPaused, resp.Ready, tt.wantUsage, tt.wantPaused)
			}
		})
	}
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name   string
		pauser Pauser
		want   int
	}{
		{"no gate", nil, http.StatusOK},
		{"gate open", fakePauser(false), http.StatusOK},
		{"gate closed", fakePauser(true), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeGenerator{}, tt.pauser, &startup.Config{})
			w := httptest.NewRecorder()
			h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestLivenessCheckHead(t *testing.T) {
	h := newTestHandlers(&fakeGenerator{})
	w := httptest.NewRecorder()
	h.LivenessCheck(w, httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))

	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("HEAD /livez: status %d, %d body bytes", w.Code, w.Body.Len())
	}
}

func TestGetVersion(t *testing.T) {
	h := newTestHandlers(&fakeGenerator{})
	w := httptest.NewRecorder()
	h.GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	var info startup.BuildInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != startup.Version {
		t.Errorf("version = %q, want %q", info.Version, startup.Version)
	}
}
