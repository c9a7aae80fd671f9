package server

import (
	"io"
	"net/http"
	"strings"
)

// maxMediatedBody caps the request bodies the agent will buffer.
const maxMediatedBody = 8 << 20

// handleMediated routes any non-control request through the mediation
// agent. Network errors never reach the UI: the agent answers from cache,
// the application shell, or a synthesized offline payload instead.
func (s *Server) handleMediated(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxMediatedBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading request body: " + err.Error()})
			return
		}
	}

	res := s.agent.Mediate(r.Context(), r.Method, r.URL.RequestURI(), body,
		r.Header.Get("Content-Type"), isNavigation(r))

	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	w.Header().Set("X-Repsync-Source", string(res.Source))
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}

// isNavigation marks page loads, which fall back to the cached application
// shell when both cache and network fail.
func isNavigation(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
