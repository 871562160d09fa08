package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/spf13/afero"

	"github.com/seantiz/parxe/internal/model"
)

type outputResponse struct {
	ID     string  `json:"id"`
	Stdout *string `json:"stdout"`
	Stderr *string `json:"stderr"`
}

// handleGetOutput returns the captured stdout and stderr of a completed
// task. A stream that was not captured, or whose artifact is gone, is null.
func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	if !model.IsTerminal(rec.Status) {
		s.writeError(w, http.StatusConflict, "task is still "+rec.Status)
		return
	}

	resp := outputResponse{ID: rec.ID}
	var err error
	if resp.Stdout, err = s.readArtifact(rec.StdoutPath); err != nil {
		s.logger.Error("read stdout artifact", "task_id", rec.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read output")
		return
	}
	if resp.Stderr, err = s.readArtifact(rec.StderrPath); err != nil {
		s.logger.Error("read stderr artifact", "task_id", rec.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read output")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) readArtifact(path string) (*string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := string(data)
	return &out, nil
}
