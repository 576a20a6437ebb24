package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "ksched API",
		Version:     "v1",
		Description: "Priority scheduler simulation runs and their scheduling traces",
		Endpoints: []endpointInfo{
			{"/api/v1/runs", []string{"GET", "POST"}, "List runs, or simulate a YAML/JSON scenario and store the run"},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single run detail"},
			{"/api/v1/runs/{id}/events", []string{"GET"}, "Scheduling trace in sequence order. Accepts ?cpu=, ?limit=, ?offset="},
			{"/api/v1/runs/{id}/threads", []string{"GET"}, "Final per-thread statistics"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
