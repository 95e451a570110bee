package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"guiatv/models"
)

// GuideService is the surface of the guide core the HTTP layer consumes.
type GuideService interface {
	GetSchedule(channelID string) models.ChannelSchedule
	GetCurrentAndNext(channelID string) models.NowNext
	ForceRefresh(channelID string)
	Status() models.GuideStatus
	Stats() models.GuideStats
}

// GuideHandler handles guide-related HTTP requests.
type GuideHandler struct {
	guide GuideService
}

// NewGuideHandler creates a new guide handler.
func NewGuideHandler(guide GuideService) *GuideHandler {
	return &GuideHandler{guide: guide}
}

// GetSchedule returns the cached schedule for a channel.
// GET /api/guide/schedule?channel=ch1
func (h *GuideHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	channelID := r.URL.Query().Get("channel")
	if channelID == "" {
		http.Error(w, `{"error":"missing channel parameter"}`, http.StatusBadRequest)
		return
	}

	writeJSON(w, h.guide.GetSchedule(channelID))
}

// GetNowPlaying returns current and next programs for specified channels.
// GET /api/guide/now?channels=ch1,ch2,ch3
func (h *GuideHandler) GetNowPlaying(w http.ResponseWriter, r *http.Request) {
	channelsParam := r.URL.Query().Get("channels")
	if channelsParam == "" {
		http.Error(w, `{"error":"missing channels parameter"}`, http.StatusBadRequest)
		return
	}

	channelIDs := strings.Split(channelsParam, ",")
	result := make([]models.NowNext, 0, len(channelIDs))
	for _, id := range channelIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		result = append(result, h.guide.GetCurrentAndNext(id))
	}

	writeJSON(w, result)
}

// ForceRefresh evicts a channel's cache entry and refreshes it in the
// background.
// POST /api/guide/refresh/{channel}
func (h *GuideHandler) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channel"]
	if channelID == "" {
		http.Error(w, `{"error":"missing channel"}`, http.StatusBadRequest)
		return
	}

	h.guide.ForceRefresh(channelID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "refreshing", "channel": channelID}); err != nil {
		log.Printf("[guide] ForceRefresh JSON encode error: %v", err)
	}
}

// GetStatus returns the guide service status.
// GET /api/guide/status
func (h *GuideHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.guide.Status())
}

// GetStats returns cache health statistics.
// GET /api/guide/stats
func (h *GuideHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.guide.Stats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[guide] JSON encode error: %v", err)
	}
}
