package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/parxe/internal/catalog"
	"github.com/seantiz/parxe/internal/future"
	"github.com/seantiz/parxe/internal/model"
	"github.com/seantiz/parxe/internal/planner"
	"github.com/seantiz/parxe/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// submitTaskRequest is the JSON body for POST /v1/tasks.
type submitTaskRequest struct {
	Func       string         `json:"func"`
	Name       string         `json:"name"`
	Args       []any          `json:"args"`
	Kwargs     map[string]any `json:"kwargs"`
	WorkingDir string         `json:"working_dir"`
}

// listTasksResponse wraps the paginated list response.
type listTasksResponse struct {
	Tasks  []*model.TaskRecord `json:"tasks"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type abortResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Func == "" {
		s.recordSubmission(req.Func, outcomeRejected)
		s.writeError(w, http.StatusBadRequest, "func is required")
		return
	}
	fn, err := s.catalog.Lookup(req.Func)
	if errors.Is(err, catalog.ErrUnknownFunction) {
		s.recordSubmission(req.Func, outcomeRejected)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.recordSubmission(req.Func, outcomeFailed)
		s.logger.Error("lookup function", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to look up function")
		return
	}

	name := req.Name
	if name == "" {
		name = req.Func
	}
	args, _ := fromJSON(req.Args).([]any)
	kwargs, _ := fromJSON(req.Kwargs).(map[string]any)

	id, _, err := s.planner.Submit(r.Context(), planner.Submission{
		Name:       name,
		Func:       fn,
		Args:       args,
		Kwargs:     kwargs,
		WorkingDir: req.WorkingDir,
	})
	if errors.Is(err, planner.ErrNotStarted) {
		s.recordSubmission(req.Func, outcomeUnavailable)
		s.writeError(w, http.StatusServiceUnavailable, "planner is not started")
		return
	}
	if err != nil {
		s.recordSubmission(req.Func, outcomeFailed)
		s.logger.Error("submit task", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit task")
		return
	}

	s.recordSubmission(req.Func, outcomeAccepted)

	rec, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		s.logger.Error("get submitted task", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve task")
		return
	}
	s.writeJSON(w, http.StatusAccepted, rec)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupTask(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	tasks, total, err := s.store.ListTasks(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list tasks", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	if tasks == nil {
		tasks = []*model.TaskRecord{}
	}

	s.writeJSON(w, http.StatusOK, listTasksResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// handleAbortTask aborts a pending or running task. Engines that cannot
// cancel running work answer 501 and leave the task running.
func (s *Server) handleAbortTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.planner.Abort(id)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, abortResponse{ID: id, Status: model.StatusAborted})
	case errors.Is(err, planner.ErrUnknownTask):
		// Completed tasks are no longer tracked by the planner.
		rec, ok := s.lookupTask(w, r)
		if !ok {
			return
		}
		s.writeError(w, http.StatusConflict, "task already "+rec.Status)
	case errors.Is(err, future.ErrAlreadyDone):
		s.writeError(w, http.StatusConflict, "task already completed")
	case errors.Is(err, errors.ErrUnsupported):
		s.writeError(w, http.StatusNotImplemented, "engine cannot abort running tasks")
	default:
		s.logger.Error("abort task", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to abort task")
	}
}

// lookupTask loads the record named by the id URL parameter, writing the
// error response itself when it cannot.
func (s *Server) lookupTask(w http.ResponseWriter, r *http.Request) (*model.TaskRecord, bool) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.GetTask(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("get task", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return nil, false
	}
	return rec, true
}

// fromJSON converts numbers decoded with UseNumber to int64 when they are
// integral and float64 otherwise, recursing into arrays and objects.
func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromJSON(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = fromJSON(e)
		}
		return out
	default:
		return v
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
