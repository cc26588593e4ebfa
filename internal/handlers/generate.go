package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"thumbcrafter/internal/candidates"
	"thumbcrafter/internal/engine"
	"thumbcrafter/internal/export"
	"thumbcrafter/internal/logging"
	"thumbcrafter/internal/mediatypes"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temp files.
const multipartMemory = 32 << 20

// CandidateResponse is one candidate in a generate reply.
type CandidateResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Kind        candidates.Kind `json:"kind"`
	Sources     []int           `json:"sources,omitempty"`
	Timestamp   *float64        `json:"timestamp,omitempty"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	// Preview is a data URI of the rendered preview.
	Preview string `json:"preview"`
}

// GenerateResponse is the reply of a completed run.
type GenerateResponse struct {
	RunID      string              `json:"runId"`
	Branch     string              `json:"branch"`
	Candidates []CandidateResponse `json:"candidates"`
}

// Generate runs candidate generation for a multipart upload with the
// fields description, video (optional) and images (repeated). The query
// parameters preset and format control the preview encoding.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	preset, err := export.LookupPreset(r.URL.Query().Get("preset"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, fmt.Sprintf("request exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Warn("failed to remove multipart temp files: %v", err)
		}
	}()

	input, err := h.readInput(r.MultipartForm)
	if err != nil {
		writeJSONError(w, err.Error(), uploadStatus(err))
		return
	}
	if input.Video != nil && !h.videoReady {
		logging.Warn("video uploaded but ffmpeg/ffprobe are unavailable; expect no candidates")
	}

	result := h.generator.Generate(r.Context(), input)
	if result.Superseded {
		writeJSONStatus(w, http.StatusConflict, ErrorResponse{
			Error: "superseded by a newer generate request",
			RunID: result.RunID,
		})
		return
	}

	response := GenerateResponse{
		RunID:      result.RunID,
		Branch:     result.Branch,
		Candidates: make([]CandidateResponse, 0, len(result.Candidates)),
	}
	for _, c := range result.Candidates {
		preview, err := encodePreview(c, preset, format)
		if err != nil {
			logging.Warn("run %s: dropping candidate %s: %v", result.RunID, c.ID, err)
			continue
		}
		response.Candidates = append(response.Candidates, toResponse(c, preview))
	}

	writeJSONStatus(w, http.StatusOK, response)
}

func (h *Handlers) readInput(form *multipart.Form) (engine.ProjectInput, error) {
	input := engine.ProjectInput{
		Description: strings.TrimSpace(firstValue(form.Value["description"])),
	}

	if videos := form.File["video"]; len(videos) > 0 {
		if len(videos) > 1 {
			return input, fmt.Errorf("only one video per request: %w", mediatypes.ErrUnsupportedType)
		}
		blob, err := readBlob(videos[0], h.limits.MaxVideoBytes)
		if err == nil {
			err = mediatypes.ValidateVideo(blob, h.limits)
		}
		if err != nil {
			return input, err
		}
		input.Video = blob
	}

	images := form.File["images"]
	if len(images) > maxImages {
		return input, fmt.Errorf("%d images, at most %d: %w", len(images), maxImages, mediatypes.ErrTooLarge)
	}
	for _, fh := range images {
		blob, err := readBlob(fh, h.limits.MaxImageBytes)
		if err == nil {
			err = mediatypes.ValidateImage(blob, h.limits)
		}
		if err != nil {
			return input, err
		}
		input.Images = append(input.Images, blob)
	}
	return input, nil
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// readBlob reads an uploaded part, failing early when it exceeds limit.
func readBlob(fh *multipart.FileHeader, limit int64) (*mediatypes.MediaBlob, error) {
	if limit > 0 && fh.Size > limit {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", fh.Filename, fh.Size, limit, mediatypes.ErrTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return mediatypes.NewMediaBlob(fh.Filename, data, fh.Header.Get("Content-Type")), nil
}

func uploadStatus(err error) int {
	switch {
	case errors.Is(err, mediatypes.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, mediatypes.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}

func encodePreview(c candidates.Candidate, preset export.Preset, format export.Format) (string, error) {
	if c.Preview == nil {
		return "", errors.New("no preview")
	}
	var buf bytes.Buffer
	if err := export.Encode(&buf, c.Preview, export.Options{Preset: preset.Name, Format: format}); err != nil {
		return "", err
	}
	return "data:" + format.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func toResponse(c candidates.Candidate, preview string) CandidateResponse {
	w, h := c.Size()
	resp := CandidateResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Kind:        c.Kind,
		Sources:     c.Sources,
		Width:       w,
		Height:      h,
		Preview:     preview,
	}
	if c.Kind == candidates.VideoFrame {
		ts := c.Timestamp
		resp.Timestamp = &ts
	}
	return resp
}
