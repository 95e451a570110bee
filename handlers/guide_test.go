package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"guiatv/handlers"
	"guiatv/models"
)

// fakeGuideService implements handlers.GuideService with canned data.
type fakeGuideService struct {
	schedules map[string]models.ChannelSchedule
	refreshed []string
}

func (f *fakeGuideService) GetSchedule(channelID string) models.ChannelSchedule {
	if s, ok := f.schedules[channelID]; ok {
		return s
	}
	return models.ChannelSchedule{ChannelID: channelID}
}

func (f *fakeGuideService) GetCurrentAndNext(channelID string) models.NowNext {
	nn := models.NowNext{ChannelID: channelID}
	if s, ok := f.schedules[channelID]; ok && len(s.Programs) > 0 {
		nn.Current = &s.Programs[0]
	}
	return nn
}

func (f *fakeGuideService) ForceRefresh(channelID string) {
	f.refreshed = append(f.refreshed, channelID)
}

func (f *fakeGuideService) Status() models.GuideStatus {
	return models.GuideStatus{Enabled: true, ChannelCount: len(f.schedules)}
}

func (f *fakeGuideService) Stats() models.GuideStats {
	return models.GuideStats{ChannelsCached: len(f.schedules), LastBatchAgeMillis: -1}
}

func newTestRouter(svc *fakeGuideService) *mux.Router {
	h := handlers.NewGuideHandler(svc)
	r := mux.NewRouter()
	r.HandleFunc("/api/guide/schedule", h.GetSchedule).Methods(http.MethodGet)
	r.HandleFunc("/api/guide/now", h.GetNowPlaying).Methods(http.MethodGet)
	r.HandleFunc("/api/guide/refresh/{channel}", h.ForceRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/guide/status", h.GetStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/guide/stats", h.GetStats).Methods(http.MethodGet)
	return r
}

func sampleSchedule(channelID string) models.ChannelSchedule {
	start := time.Now().Add(time.Hour)
	return models.ChannelSchedule{
		ChannelID: channelID,
		Programs: []models.Program{{
			ID:        models.ProgramID(channelID, start),
			ChannelID: channelID,
			Title:     "Jornal",
			Start:     start,
			End:       start.Add(time.Hour),
		}},
		LastFetch: time.Now().UnixMilli(),
	}
}

func TestGetSchedule(t *testing.T) {
	svc := &fakeGuideService{schedules: map[string]models.ChannelSchedule{
		"ch1": sampleSchedule("ch1"),
	}}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/guide/schedule?channel=ch1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var sched models.ChannelSchedule
	if err := json.NewDecoder(w.Body).Decode(&sched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sched.ChannelID != "ch1" || len(sched.Programs) != 1 {
		t.Errorf("unexpected schedule %+v", sched)
	}
}

func TestGetScheduleMissingParam(t *testing.T) {
	router := newTestRouter(&fakeGuideService{})

	req := httptest.NewRequest(http.MethodGet, "/api/guide/schedule", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetNowPlaying(t *testing.T) {
	svc := &fakeGuideService{schedules: map[string]models.ChannelSchedule{
		"ch1": sampleSchedule("ch1"),
	}}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/guide/now?channels=ch1,%20ch2,", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var result []models.NowNext
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Empty trailing entry skipped, whitespace trimmed.
	if len(result) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result))
	}
	if result[0].Current == nil || result[0].Current.Title != "Jornal" {
		t.Errorf("unexpected now/next for ch1: %+v", result[0])
	}
	if result[1].ChannelID != "ch2" || result[1].Current != nil {
		t.Errorf("unexpected now/next for ch2: %+v", result[1])
	}
}

func TestForceRefresh(t *testing.T) {
	svc := &fakeGuideService{}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/guide/refresh/ch1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if len(svc.refreshed) != 1 || svc.refreshed[0] != "ch1" {
		t.Errorf("refresh not forwarded to service: %v", svc.refreshed)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["channel"] != "ch1" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestGetStatusAndStats(t *testing.T) {
	svc := &fakeGuideService{schedules: map[string]models.ChannelSchedule{
		"ch1": sampleSchedule("ch1"),
	}}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/guide/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d, want 200", w.Code)
	}
	var status models.GuideStatus
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Enabled || status.ChannelCount != 1 {
		t.Errorf("unexpected status %+v", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/guide/stats", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stats endpoint = %d, want 200", w.Code)
	}
	var stats models.GuideStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.ChannelsCached != 1 || stats.LastBatchAgeMillis != -1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
