package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Accounts.
	mux.HandleFunc("POST /api/auth/register", s.handleAuthRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleAuthLogin)
	mux.Handle("GET /api/auth/user", s.requireAuth(http.HandlerFunc(s.handleAuthProfile)))
	mux.Handle("PUT /api/auth/user", s.requireAuth(http.HandlerFunc(s.handleAuthUpdateProfile)))
	mux.Handle("PUT /api/auth/password", s.requireAuth(http.HandlerFunc(s.handleAuthChangePassword)))

	// Analysis pipeline.
	mux.HandleFunc("POST /api/process-image", s.handleProcessImage)
	mux.HandleFunc("GET /api/get-processed-images", s.handleListProcessedImages)
	mux.HandleFunc("GET /artifacts/{name}", s.handleServeArtifact)

	// Results. The save path is keyed for the analysis machine; the rest
	// require a signed-in user.
	mux.HandleFunc("POST /api/results/save", s.handleSaveResult)
	mux.Handle("GET /api/results", s.requireAuth(http.HandlerFunc(s.handleListResults)))
	mux.Handle("GET /api/results/{id}", s.requireAuth(http.HandlerFunc(s.handleGetResult)))
	mux.Handle("DELETE /api/results/{id}", s.requireAuth(http.HandlerFunc(s.handleDeleteResult)))

	return s.withRequestLogging(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
