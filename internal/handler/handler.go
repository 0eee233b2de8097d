package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/interviewer/internal/content"
	"github.com/pavelanni/interviewer/internal/corpus"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

const maxUploadBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	orch     *interview.Orchestrator
	store    *store.Store
	problems atomic.Pointer[corpus.Corpus]
	classify content.Classifier
	uploadMu sync.Mutex
}

// New creates a new Handler. The store is optional; without it uploads only
// extend the in-memory corpus and the archive endpoints are disabled. Uploaded
// problems are categorized with classifier, the same one used at startup.
func New(o *interview.Orchestrator, c *corpus.Corpus, s *store.Store, classifier content.Classifier) (*Handler, error) {
	if o == nil || c == nil || classifier == nil {
		return nil, errors.New("handler: orchestrator, corpus and classifier are required")
	}
	h := &Handler{orch: o, store: s, classify: classifier}
	h.problems.Store(c)
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.handleSession)
		r.Post("/answer", h.handleAnswer)
		r.Post("/retry", h.handleRetry)
		r.Post("/reset", h.handleReset)
		r.Post("/generate", h.handleGenerate)
		r.Get("/problems", h.handleListProblems)
		r.Post("/problems", h.handleUploadProblems)
		r.Get("/utterances/{index}/audio", h.handleAudio)
		r.Get("/interviews", h.handleListInterviews)
		r.Get("/interviews/{id}", h.handleGetInterview)
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	in, err := readAnswer(r)
	if err != nil {
		slog.Warn("bad answer request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.orch.Answer(r.Context(), in); err != nil {
		h.writeError(w, r, err, "AnswerNotExpected")
		return
	}
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Retry(r.Context()); err != nil {
		h.writeError(w, r, err, "NothingToRetry")
		return
	}
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	lib := h.problems.Load()
	id := strings.TrimSpace(r.FormValue("problem_id"))

	var rec model.QuestionRecord
	if id == "" {
		p := lib.Random()
		id, rec = p.ID, p.QuestionRecord
	} else {
		var ok bool
		if rec, ok = lib.Get(id); !ok {
			writeMessage(w, http.StatusNotFound, trData(r, "ProblemNotFound", map[string]any{"ID": id}))
			return
		}
	}
	if err := h.orch.Reset(r.Context(), rec); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	slog.Info("session reset", "problem", id)
	h.writeSession(w, r, http.StatusOK)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.FormValue("topic"))
	if topic == "" {
		writeMessage(w, http.StatusBadRequest, tr(r, "TopicRequired"))
		return
	}
	mode := model.ParseCategory(r.FormValue("mode"))
	if _, err := h.orch.Generate(r.Context(), topic, mode); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.writeSession(w, r, http.StatusCreated)
}

func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid utterance index", http.StatusBadRequest)
		return
	}
	audio, ok := h.orch.Audio(index)
	if !ok {
		writeMessage(w, http.StatusNotFound, tr(r, "NoAudio"))
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	if _, err := w.Write(audio); err != nil {
		slog.Error("write audio", "error", err)
	}
}

func (h *Handler) handleListInterviews(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeMessage(w, http.StatusNotFound, tr(r, "ArchiveDisabled"))
		return
	}
	results, err := h.store.ExportInterviews()
	if err != nil {
		slog.Error("export interviews", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *Handler) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeMessage(w, http.StatusNotFound, tr(r, "ArchiveDisabled"))
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetInterview(id)
	if err != nil {
		slog.Error("get interview", "id", id, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		writeMessage(w, http.StatusNotFound, trData(r, "InterviewNotFound", map[string]any{"ID": id}))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// readAnswer accepts a multipart form with "text" and an optional "audio"
// file, or a plain form with "text" only.
func readAnswer(r *http.Request) (interview.Input, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return interview.Input{}, err
	}
	in := interview.Input{Text: r.FormValue("text")}

	file, _, err := r.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, nil
	}
	if err != nil {
		return in, err
	}
	defer file.Close()
	if in.Audio, err = io.ReadAll(file); err != nil {
		return in, err
	}
	return in, nil
}
