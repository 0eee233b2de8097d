package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/rubric"
)

// sessionView is the JSON shape of the active session.
type sessionView struct {
	interview.Session
	AwaitingAck bool `json:"awaiting_ack"`
	// Audio lists the utterance indices that have synthesized speech.
	Audio   []int  `json:"audio"`
	Message string `json:"message,omitempty"`
}

type messageView struct {
	Message string `json:"message"`
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int) {
	s, ok := h.orch.Snapshot()
	if !ok {
		writeMessage(w, http.StatusNotFound, tr(r, "NoSession"))
		return
	}
	writeJSON(w, status, newSessionView(s, ""))
}

func newSessionView(s interview.Session, msg string) sessionView {
	v := sessionView{Session: s, AwaitingAck: s.AwaitingAck(), Audio: []int{}, Message: msg}
	for i, u := range s.Utterances {
		if len(u.Audio) > 0 {
			v.Audio = append(v.Audio, i)
		}
	}
	return v
}

// writeError maps orchestrator errors to status codes. Rejected transitions
// carry the current session so the client can resync.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, transitionMsg string) {
	var ce *model.CollaboratorError
	switch {
	case errors.As(err, &ce):
		slog.Error("collaborator failed", "collaborator", ce.Collaborator, "error", ce.Err)
		h.writeSessionOr(w, r, http.StatusBadGateway,
			trData(r, "ServiceUnavailable", map[string]any{"Service": ce.Collaborator, "Error": ce.Err.Error()}))
	case errors.Is(err, rubric.ErrMalformedEvaluation):
		slog.Error("grader reply rejected", "error", err)
		h.writeSessionOr(w, r, http.StatusBadGateway,
			trData(r, "ServiceUnavailable", map[string]any{"Service": model.CollabGrader, "Error": err.Error()}))
	case errors.Is(err, interview.ErrNoSession):
		writeMessage(w, http.StatusConflict, tr(r, "NoSession"))
	case errors.Is(err, interview.ErrInvalidTransition):
		msg := err.Error()
		if transitionMsg != "" {
			msg = tr(r, transitionMsg)
		}
		if s, ok := h.orch.Snapshot(); ok && s.Phase.Terminal() && transitionMsg == "AnswerNotExpected" {
			msg = tr(r, "InterviewClosed")
		}
		h.writeSessionOr(w, r, http.StatusConflict, msg)
	case errors.Is(err, interview.ErrEmptyAnswer):
		h.writeSessionOr(w, r, http.StatusBadRequest, tr(r, "EmptyAnswer"))
	case errors.Is(err, interview.ErrEmptyQuestions):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		h.writeSessionOr(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeSessionOr(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if s, ok := h.orch.Snapshot(); ok {
		writeJSON(w, status, newSessionView(s, msg))
		return
	}
	writeMessage(w, status, msg)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageView{Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func tr(r *http.Request, id string) string {
	return appI18n.T(r.Context(), id)
}

func trData(r *http.Request, id string, data map[string]any) string {
	return appI18n.Td(r.Context(), id, data)
}

func trCount(r *http.Request, id string, count int) string {
	return appI18n.Tp(r.Context(), id, count)
}
