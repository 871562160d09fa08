package api

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine,omitempty"`
}

// handleHealthz reports "ok" while the planner has an engine bound and
// "idle" otherwise. Both are healthy answers.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "idle"}
	if e := s.planner.Engine(); e != nil {
		resp = healthResponse{Status: "ok", Engine: e.Name()}
	}
	s.writeJSON(w, http.StatusOK, resp)
}
