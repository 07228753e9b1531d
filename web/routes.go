// ABOUTME: Route handlers for the kith HTTP API
// ABOUTME: Decodes JSON requests, calls the app and encodes the results
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harperreed/kith/events"
	"github.com/harperreed/kith/models"
)

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	contacts, err := s.app.Contacts.FindContacts(r.Context(), s.userID(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Phones      []string `json:"phones"`
		Emails      []string `json:"emails"`
		Tags        []string `json:"tags"`
		Mutuality   *int     `json:"mutuality"`
		CadenceDays *int     `json:"cadence_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	c := &models.Contact{
		UserID:      s.userID(r),
		Name:        req.Name,
		Phones:      req.Phones,
		Emails:      req.Emails,
		Tags:        req.Tags,
		Mutuality:   req.Mutuality,
		CadenceDays: req.CadenceDays,
	}
	if err := s.app.AddContact(r.Context(), c); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	rec, err := s.app.Score(r.Context(), s.userID(r), chi.URLParam(r, "contactID"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSetCadence(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "contactID")

	var req struct {
		CadenceDays *int `json:"cadence_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CadenceDays != nil && *req.CadenceDays <= 0 {
		writeError(w, http.StatusBadRequest, "cadence_days must be positive")
		return
	}

	if err := s.app.SetCadence(r.Context(), s.userID(r), contactID, req.CadenceDays); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contact_id":   contactID,
		"cadence_days": req.CadenceDays,
	})
}

func (s *Server) handleEmitAction(w http.ResponseWriter, r *http.Request) {
	var params events.EmitParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	params.UserID = s.userID(r)

	result, err := s.app.Pipeline.Emit(r.Context(), params)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !result.Emitted {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	var ev models.InteractionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ev.ID = ""
	ev.UserID = s.userID(r)

	if _, err := s.app.LogInteraction(r.Context(), &ev); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID string `json:"contact_id"`
		Sentiment string `json:"sentiment"`
		Note      string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	n := &models.OutcomeNote{
		UserID:    s.userID(r),
		ContactID: req.ContactID,
		Sentiment: req.Sentiment,
		Note:      req.Note,
	}
	if err := s.app.RecordOutcome(r.Context(), n); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleTodayDeck(w http.ResponseWriter, r *http.Request) {
	cards, err := s.app.Builder.TodayDeck(r.Context(), s.userID(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeDeck(w, http.StatusOK, cards)
}

func (s *Server) handleBuildDeck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxCards int `json:"max_cards"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if req.MaxCards < 0 {
		writeError(w, http.StatusBadRequest, "max_cards must not be negative")
		return
	}

	cards, err := s.app.BuildDeck(r.Context(), s.userID(r), req.MaxCards)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeDeck(w, http.StatusOK, cards)
}

func (s *Server) writeDeck(w http.ResponseWriter, status int, cards []models.DeckCard) {
	if cards == nil {
		cards = []models.DeckCard{}
	}
	writeJSON(w, status, map[string]any{
		"date":  s.app.Builder.Today(),
		"cards": cards,
	})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	premium := s.app.IsPremium(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       s.app.Builder.Today(),
		"exhausted":  s.app.Builder.IsDailyQuotaExhausted(r.Context(), userID),
		"quota":      s.app.Builder.Quota(premium),
		"is_premium": premium,
	})
}

func (s *Server) handleCardStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status required")
		return
	}

	card, err := s.app.Builder.UpdateCardStatus(r.Context(), s.userID(r), chi.URLParam(r, "cardID"), req.Status)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.ArchiveOldDecks(r.Context(), s.userID(r)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := s.userID(r)

	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := time.Parse(time.DateOnly, q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		to, err := time.Parse(time.DateOnly, q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": s.app.Archiver.HistoryRange(r.Context(), userID, from, to)})
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	writeJSON(w, http.StatusOK, map[string]any{"records": s.app.Archiver.History(r.Context(), userID, limit)})
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"streak":                s.app.Archiver.CalculateStreak(r.Context(), userID),
		"completion_rate":       s.app.Archiver.CompletionRate(r.Context(), userID, days),
		"fresh_conversion_rate": s.app.Archiver.FreshConversionRate(r.Context(), userID, days),
		"window_days":           days,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.app.Queue.Status(chi.URLParam(r, "jobID"))
	if !ok {
		s.writeAppError(w, r, events.ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobRetry(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.app.Queue.Retry(jobID); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": events.JobQueued})
}
