package api

import (
	"net/http"

	"github.com/seantiz/parxe/internal/catalog"
	"github.com/seantiz/parxe/internal/engine"
)

type listEnginesResponse struct {
	Engines []engine.Info `json:"engines"`
	Active  string        `json:"active,omitempty"`
}

func (s *Server) handleListEngines(w http.ResponseWriter, _ *http.Request) {
	resp := listEnginesResponse{Engines: s.registry.List()}
	if e := s.planner.Engine(); e != nil {
		resp.Active = e.Name()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListFunctions(w http.ResponseWriter, _ *http.Request) {
	entries := s.catalog.List()
	if entries == nil {
		entries = []catalog.Entry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}
