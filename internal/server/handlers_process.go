package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/analysis"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/api"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/upload"
)

const uploadFieldName = "image"

func (s *Server) handleProcessImage(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.analysisLimiter, w, r, "analysis") {
		return
	}
	defer s.releaseLimiter(s.analysisLimiter)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge))
			return
		}
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(fmt.Errorf("invalid multipart form")))
		return
	}

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("no image file provided"), ErrCodeNoImageFile))
		return
	}
	defer file.Close()

	staged, err := s.receiver.Store(file, header.Filename)
	if err != nil {
		if errors.Is(err, upload.ErrEmptyPayload) {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeNoImageFile))
			return
		}
		s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(err))
		return
	}

	processed, err := s.invoker.Process(r.Context(), staged)
	if err != nil {
		s.writeServiceError(w, r, processFailure(err))
		return
	}

	s.writeJSON(w, http.StatusOK, api.ProcessImageResponse{
		ProcessedImageURL: processed.URL,
		Timestamp:         processed.Timestamp,
	})
}

// processFailure maps analysis errors onto the wire taxonomy. Diagnostics
// from the subprocess are already bounded by the invoker.
func processFailure(err error) error {
	failed := fmt.Errorf("failed to process image")

	var cfgErr *analysis.ConfigError
	if errors.As(err, &cfgErr) {
		return apiError{
			status:  http.StatusInternalServerError,
			code:    "internal",
			errCode: ErrCodeAnalyzerMissing,
			details: cfgErr.Reason,
			err:     failed,
		}
	}

	var procErr *analysis.ProcessError
	if errors.As(err, &procErr) {
		errCode := ErrCodeProcessingFailed
		switch {
		case procErr.Timeout:
			errCode = ErrCodeProcessingTimeout
		case strings.Contains(procErr.Reason, "no output"):
			errCode = ErrCodeMissingOutput
		}
		details := procErr.Diagnostic
		if details == "" {
			details = procErr.Reason
		}
		return apiError{
			status:  http.StatusInternalServerError,
			code:    "internal",
			errCode: errCode,
			details: details,
			err:     failed,
		}
	}

	return internalError(err)
}

func (s *Server) handleListProcessedImages(w http.ResponseWriter, r *http.Request) {
	entries, err := s.artifacts.List()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(err))
		return
	}

	images := make([]api.ProcessedImage, 0, len(entries))
	for _, entry := range entries {
		images = append(images, api.ProcessedImage{
			URL:       entry.URL,
			Timestamp: entry.Timestamp,
		})
	}

	s.writeJSON(w, http.StatusOK, api.ProcessedImagesResponse{Images: images})
}

func (s *Server) handleServeArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := s.artifacts.Open(name)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("image not found"), ErrCodeArtifactNotFound))
		return
	}
	http.ServeFile(w, r, path)
}
