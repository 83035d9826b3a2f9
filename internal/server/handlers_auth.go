package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/api"
)

func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	result, err := s.authService.Register(r.Context(), req.Email, req.Password, req.Name, req.Specialization, req.Hospital, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, errEmailTaken):
			s.writeErrorReq(w, r, http.StatusConflict, makeAPIError(http.StatusConflict, "conflict", ErrCodeEmailExists, err))
		case isValidationError(err):
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}

	s.writeJSON(w, http.StatusCreated, api.AuthResponse{Token: result.Token, User: *result.User})
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	limiterKey := loginAttemptKey(req.Email, r)
	if !s.loginLimiter.Allow(limiterKey, now) {
		s.writeErrorReq(w, r, http.StatusTooManyRequests, apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many login attempts; retry later"),
		})
		return
	}

	result, err := s.authService.Login(r.Context(), req.Email, req.Password, now)
	if err != nil {
		switch {
		case errors.Is(err, errInvalidCredentials):
			s.loginLimiter.RegisterFailure(limiterKey, now)
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("invalid credentials")))
		case isValidationError(err):
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}
	s.loginLimiter.Reset(limiterKey)

	s.writeJSON(w, http.StatusOK, api.AuthResponse{Token: result.Token, User: *result.User})
}

func (s *Server) handleAuthProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("unauthorized")))
		return
	}

	s.writeJSON(w, http.StatusOK, *principal.User)
}

func (s *Server) handleAuthUpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("unauthorized")))
		return
	}

	var req api.UpdateProfileRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	updated, err := s.authService.UpdateProfile(r.Context(), principal.User, req.Name, req.Specialization, req.Hospital)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, *updated)
}

func (s *Server) handleAuthChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("unauthorized")))
		return
	}

	var req api.ChangePasswordRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	err := s.authService.ChangePassword(r.Context(), principal.User, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, errWrongPassword), isValidationError(err):
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequest(err))
		default:
			s.writeStoreError(w, r, err)
		}
		return
	}

	s.writeJSON(w, http.StatusOK, api.ChangePasswordResponse{Success: true, Message: "password updated"})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerTokenFromRequest(r)
		if token == "" {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("missing bearer token")))
			return
		}

		user, err := s.authService.AuthenticateToken(r.Context(), token, time.Now().UTC())
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if user == nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("invalid or expired token")))
			return
		}

		ctx := contextWithAuthPrincipal(r.Context(), authPrincipal{AuthType: authTypeBearer, User: user})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerTokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func isValidationError(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "email") ||
		strings.Contains(message, "password") ||
		strings.Contains(message, "name is required")
}

func loginAttemptKey(email string, r *http.Request) string {
	user := strings.ToLower(strings.TrimSpace(email))
	if user == "" {
		user = "<empty>"
	}
	ip := requestClientIP(r)
	if ip == "" {
		ip = "<unknown>"
	}
	return ip + "|" + user
}

func requestClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err == nil {
		return strings.TrimSpace(host)
	}
	return remote
}
