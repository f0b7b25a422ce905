package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/fitito/internal/models"
	"github.com/claude/fitito/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Write log kinds for endpoints that are not a queued mutation kind.
const (
	kindTrainingSession = "training_session"
	kindDeleteHistory   = "delete_session_history"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpsertHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var p models.SessionHistoryPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := validateHistory(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.db.EnsureProfile(r.Context(), p.ProfileID); err != nil {
		s.log.Error("ensure profile", "profile_id", p.ProfileID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	res, err := s.db.UpsertSessionHistory(r.Context(), &p)
	replayed := err == nil && res.Replayed
	s.logWrite(r.Context(), p.ProfileID, string(models.MutationSessionCompleted), replayed, err, start)
	if err != nil {
		s.log.Error("upsert session history", "profile_id", p.ProfileID, "session_date", p.SessionDate, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if res.Replayed {
		s.log.Info("session history redelivered", "profile_id", p.ProfileID, "session_date", p.SessionDate, "id", res.ID)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	profileID, ok := mustProfileID(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date " + date})
		return
	}

	rec, err := s.db.GetSessionHistory(r.Context(), profileID, date)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session history for " + date})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	profileID, ok := mustProfileID(w, r)
	if !ok {
		return
	}
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if (start != "" && !validDate(start)) || (end != "" && !validDate(end)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start and end must be YYYY-MM-DD"})
		return
	}

	recs, err := s.db.ListSessionHistory(r.Context(), profileID, start, end)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []models.SessionHistoryRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleDeleteHistoryByID(w http.ResponseWriter, r *http.Request) {
	profileID, ok := mustProfileID(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	start := time.Now()
	found, err := s.db.DeleteSessionHistoryByID(r.Context(), profileID, id)
	s.finishDelete(w, r, profileID, found, err, start)
}

func (s *Server) handleDeleteHistoryToday(w http.ResponseWriter, r *http.Request) {
	profileID, ok := mustProfileID(w, r)
	if !ok {
		return
	}
	start := time.Now()
	today := models.LocalDate(s.now(), s.loc)
	found, err := s.db.DeleteSessionHistoryByDate(r.Context(), profileID, today)
	s.finishDelete(w, r, profileID, found, err, start)
}

func (s *Server) handleDeleteHistoryByDate(w http.ResponseWriter, r *http.Request) {
	profileID, ok := mustProfileID(w, r)
	if !ok {
		return
	}
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date " + date})
		return
	}
	start := time.Now()
	found, err := s.db.DeleteSessionHistoryByDate(r.Context(), profileID, date)
	s.finishDelete(w, r, profileID, found, err, start)
}

func (s *Server) finishDelete(w http.ResponseWriter, r *http.Request, profileID int, found bool, err error, start time.Time) {
	s.logWrite(r.Context(), profileID, kindDeleteHistory, false, err, start)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session history not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutTrainingSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid training session ID"})
		return
	}
	var sess models.TrainingSession
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if sess.ID != id {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body id does not match path"})
		return
	}
	if sess.ProfileID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id must be positive"})
		return
	}
	if err := s.db.EnsureProfile(r.Context(), sess.ProfileID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	err = s.db.PutTrainingSession(r.Context(), &sess)
	s.logWrite(r.Context(), sess.ProfileID, kindTrainingSession, false, err, start)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": string(sess.Status)})
}

func (s *Server) handleGetTrainingSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid training session ID"})
		return
	}
	sess, err := s.db.GetTrainingSession(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "training session not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handlePutRoutineWeekDay(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	weekID, day, ok := mustRoutineDay(w, r)
	if !ok {
		return
	}
	var p models.RoutineWeekPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if p.RoutineWeekID != weekID || p.DayOfWeek != day {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body routine week/day does not match path"})
		return
	}
	if p.ProfileID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "profile_id must be positive"})
		return
	}
	if err := s.db.EnsureProfile(r.Context(), p.ProfileID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	err := s.db.PutRoutineWeekDay(r.Context(), &p)
	s.logWrite(r.Context(), p.ProfileID, string(models.MutationRoutineWeekUpdated), false, err, start)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"routine_week_id": weekID, "day_of_week": day})
}

func (s *Server) handleGetRoutineWeekDay(w http.ResponseWriter, r *http.Request) {
	weekID, day, ok := mustRoutineDay(w, r)
	if !ok {
		return
	}
	p, err := s.db.GetRoutineWeekDay(r.Context(), weekID, day)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "routine day not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProfileStats(w http.ResponseWriter, r *http.Request) {
	profileID, ok := mustProfileID(w, r)
	if !ok {
		return
	}
	stats, err := s.db.GetProfileStats(r.Context(), profileID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWriteLogs(w http.ResponseWriter, r *http.Request) {
	profileID, ok := mustProfileID(w, r)
	if !ok {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.db.QueryWriteLogs(r.Context(), profileID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// logWrite records a write's outcome to the write_logs table. Failures to log
// are only reported, never returned to the caller.
func (s *Server) logWrite(ctx context.Context, profileID int, kind string, replayed bool, writeErr error, start time.Time) {
	status := "success"
	var errMsg *string
	if writeErr != nil {
		status = "error"
		msg := writeErr.Error()
		errMsg = &msg
	}
	ms := int(time.Since(start).Milliseconds())

	entry := storage.WriteLog{
		ProfileID:    profileID,
		Kind:         kind,
		Status:       status,
		Replayed:     replayed,
		DurationMs:   &ms,
		ErrorMessage: errMsg,
	}
	if _, err := s.db.InsertWriteLog(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("failed to record write log", "kind", kind, "error", err)
	}
}

func mustProfileID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "profileID"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid profile ID"})
		return 0, false
	}
	return id, true
}

func mustRoutineDay(w http.ResponseWriter, r *http.Request) (weekID, day int, ok bool) {
	weekID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || weekID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid routine week ID"})
		return 0, 0, false
	}
	day, err = strconv.Atoi(chi.URLParam(r, "day"))
	if err != nil || day < 0 || day > 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be 0-6"})
		return 0, 0, false
	}
	return weekID, day, true
}

func validDate(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}

var errInvalidHistory = errors.New("invalid session history")

// validateHistory rejects bodies that could not have come from a completed
// session.
func validateHistory(p *models.SessionHistoryPayload) error {
	switch {
	case p.ProfileID <= 0:
		return fmt.Errorf("%w: profile_id must be positive", errInvalidHistory)
	case !validDate(p.SessionDate):
		return fmt.Errorf("%w: session_date %q is not YYYY-MM-DD", errInvalidHistory, p.SessionDate)
	case p.SessionID == uuid.Nil:
		return fmt.Errorf("%w: session_id is required", errInvalidHistory)
	case p.EndedAt.Before(p.StartedAt):
		return fmt.Errorf("%w: ended_at is before started_at", errInvalidHistory)
	case p.CompletedSets > p.TotalSets || p.CompletedExercises > p.TotalExercises:
		return fmt.Errorf("%w: completed counts exceed totals", errInvalidHistory)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
