package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	diffimage "snapshot-diff/internal/diff/image"
	"snapshot-diff/internal/listing"
	"snapshot-diff/internal/orchestrator"
	"strings"

	"github.com/go-logr/logr"
)

type DiffFoldersRequest struct {
	BaselineRoot  string            `json:"baselineRoot"`
	CandidateRoot string            `json:"candidateRoot"`
	DiffRoot      string            `json:"diffRoot"`
	Options       diffimage.Options `json:"options"`
	SideBySide    bool              `json:"sideBySide"`
	// Parallel defaults to true when omitted.
	Parallel *bool  `json:"parallel,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	DryRun   bool   `json:"dryRun,omitempty"`
}

// DiffFolders serves POST /diff-folders. The handler writes diff images under the request's diffRoot,
// so when baseDirectory is set every root in the request must resolve inside it.
func DiffFolders(runner *orchestrator.Runner, baseDirectory string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request DiffFoldersRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&request); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if request.BaselineRoot == "" || request.CandidateRoot == "" || request.DiffRoot == "" {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if request.Options.Threshold < 0 || request.Options.Threshold > 1 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if baseDirectory != "" {
			for _, root := range []string{request.BaselineRoot, request.CandidateRoot, request.DiffRoot} {
				if !within(baseDirectory, root) {
					http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
					return
				}
			}
		}

		parallel := true
		if request.Parallel != nil {
			parallel = *request.Parallel
		}

		scoped := *runner
		if log, err := logr.FromContext(r.Context()); err == nil {
			scoped.Log = log
		}

		report, err := scoped.DiffFolders(r.Context(), orchestrator.Config{
			BaselineRoot:  request.BaselineRoot,
			CandidateRoot: request.CandidateRoot,
			DiffRoot:      request.DiffRoot,
			Options:       request.Options,
			SideBySide:    request.SideBySide,
			Parallel:      parallel,
			Pattern:       request.Pattern,
			DryRun:        request.DryRun,
		})
		if errors.Is(err, listing.ErrInvalidRoot) || errors.Is(err, orchestrator.ErrInvalidConfig) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if err != nil {
			slog.Error(fmt.Sprintf("failed to diff folders: %s", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

func within(base string, p string) bool {
	base, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	p, err = filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
