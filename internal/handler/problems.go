package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/interviewer/internal/corpus"
	"github.com/pavelanni/interviewer/internal/model"
)

type problemSummary struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Category  model.Category `json:"category"`
	Questions int            `json:"questions"`
}

type problemList struct {
	Message  string           `json:"message"`
	Problems []problemSummary `json:"problems"`
}

func (h *Handler) handleListProblems(w http.ResponseWriter, r *http.Request) {
	lib := h.problems.Load()
	list := problemList{Problems: make([]problemSummary, 0, lib.Len())}
	for _, p := range lib.Problems() {
		list.Problems = append(list.Problems, problemSummary{
			ID:        p.ID,
			Title:     p.Title,
			Category:  p.Category,
			Questions: len(p.Questions),
		})
	}
	list.Message = trCount(r, "ProblemsAvailable", len(list.Problems))
	writeJSON(w, http.StatusOK, list)
}

// handleUploadProblems imports a YAML problems file sent as "problems_file".
func (h *Handler) handleUploadProblems(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "file too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("problems_file")
	if err != nil {
		http.Error(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	h.uploadMu.Lock()
	var count int
	if h.store != nil {
		count, err = h.importStored(header.Filename, data)
	} else {
		count, err = h.importMemory(data)
	}
	h.uploadMu.Unlock()
	switch {
	case errors.Is(err, corpus.ErrUnchanged):
		writeMessage(w, http.StatusOK, tr(r, "UploadDuplicate"))
		return
	case err != nil:
		slog.Warn("problems upload rejected", "filename", header.Filename, "error", err)
		writeMessage(w, http.StatusBadRequest, trData(r, "InvalidProblemsFile", map[string]any{"Error": err.Error()}))
		return
	}

	slog.Info("uploaded problems", "filename", header.Filename, "count", count)
	writeMessage(w, http.StatusCreated, trCount(r, "ProblemsImported", count))
}

func (h *Handler) importStored(name string, data []byte) (int, error) {
	count, err := corpus.Import(h.store, name, data, h.classify, true)
	if err != nil {
		return 0, err
	}
	lib, err := corpus.Load(h.store)
	if err != nil {
		return 0, err
	}
	h.problems.Store(lib)
	return count, nil
}

func (h *Handler) importMemory(data []byte) (int, error) {
	added, err := corpus.Parse(data, h.classify)
	if err != nil {
		return 0, err
	}
	lib, err := corpus.New(append(h.problems.Load().Problems(), added...))
	if err != nil {
		return 0, err
	}
	h.problems.Store(lib)
	return len(added), nil
}
