package handlers

import (
	"net/http"

	"thumbcrafter/internal/candidates"
	"thumbcrafter/internal/export"
)

// PresetsResponse lists what a client can ask for.
type PresetsResponse struct {
	Styles        []candidates.Style `json:"styles"`
	Presets       []export.Preset    `json:"presets"`
	Formats       []export.Format    `json:"formats"`
	MaxCandidates int                `json:"maxCandidates"`
}

// GetPresets returns the composite styles and the export presets
func (h *Handlers) GetPresets(w http.ResponseWriter, _ *http.Request) {
	presets := make([]export.Preset, 0, len(export.Presets))
	for _, name := range export.PresetNames() {
		presets = append(presets, export.Presets[name])
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSONStatus(w, http.StatusOK, PresetsResponse{
		Styles:        candidates.Styles,
		Presets:       presets,
		Formats:       []export.Format{export.JPEG, export.PNG, export.WebP},
		MaxCandidates: candidates.MaxCandidates,
	})
}
