package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/api"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/models"
)

const ingestKeyHeader = "x-api-key"

// handleSaveResult is the machine ingest path: the analysis worker posts
// finished results with a shared API key instead of a user session.
func (s *Server) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	if !s.checkIngestKey(w, r) {
		return
	}

	var req api.SaveResultRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	if err := validateSaveResult(req); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	exists, err := s.store.UserExists(r.Context(), req.UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !exists {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("user not found"), ErrCodeUserNotFound))
		return
	}

	result := models.AnalysisResult{
		UserID:     req.UserID,
		Prediction: strings.TrimSpace(req.Prediction),
		Confidence: *req.Confidence,
		Timestamp:  *req.Timestamp,
		Original:   req.Original,
		Binary:     req.Binary,
		Contours:   req.Contours,
		Overlay:    req.Overlay,
		IsNormal:   req.IsNormal,
	}
	id, err := s.store.CreateResult(r.Context(), &result)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, api.SaveResultResponse{
		Success:  true,
		Message:  "result saved",
		ResultID: id,
	})
}

func (s *Server) checkIngestKey(w http.ResponseWriter, r *http.Request) bool {
	if s.ingestKey == "" {
		s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(fmt.Errorf("ingest api key is not configured")))
		return false
	}
	provided := strings.TrimSpace(r.Header.Get(ingestKeyHeader))
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(s.ingestKey)) != 1 {
		s.writeErrorReq(w, r, http.StatusUnauthorized, makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeInvalidAPIKey, fmt.Errorf("invalid api key")))
		return false
	}
	return true
}

func validateSaveResult(req api.SaveResultRequest) error {
	if req.UserID <= 0 {
		return badRequestCode(fmt.Errorf("user_id is required"), ErrCodeMissingRequired)
	}
	if strings.TrimSpace(req.Prediction) == "" {
		return badRequestCode(fmt.Errorf("prediction is required"), ErrCodeMissingRequired)
	}
	if req.Confidence == nil {
		return badRequestCode(fmt.Errorf("confidence is required"), ErrCodeMissingRequired)
	}
	if *req.Confidence < 0 || *req.Confidence > 1 {
		return badRequestCode(fmt.Errorf("confidence must be between 0 and 1"), ErrCodeInvalidConfidence)
	}
	if req.Timestamp == nil || *req.Timestamp <= 0 {
		return badRequestCode(fmt.Errorf("timestamp is required"), ErrCodeMissingRequired)
	}
	return nil
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("unauthorized")))
		return
	}

	results, err := s.store.ListResultsByUser(r.Context(), principal.User.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if results == nil {
		results = []models.AnalysisResult{}
	}

	s.writeJSON(w, http.StatusOK, api.ResultsResponse{Results: results})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("unauthorized")))
		return
	}

	id, ok := s.pathResultIDOrBadRequest(w, r)
	if !ok {
		return
	}

	result, err := s.store.GetResult(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if result == nil {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("result not found"), ErrCodeResultNotFound))
		return
	}
	if result.UserID != principal.User.ID {
		// Do not reveal whose result this is.
		s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("not authorized")))
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("unauthorized")))
		return
	}

	id, ok := s.pathResultIDOrBadRequest(w, r)
	if !ok {
		return
	}

	deleted, err := s.store.DeleteResult(r.Context(), id, principal.User.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !deleted {
		// Absent and foreign-owned look the same on this path.
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("result not found or not authorized"), ErrCodeResultNotFound))
		return
	}

	s.writeJSON(w, http.StatusOK, api.DeleteResultResponse{Success: true, Message: "result deleted"})
}
