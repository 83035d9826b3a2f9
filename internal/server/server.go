package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/analysis"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/artifact"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/store"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/upload"
)

const (
	ingestKeyEnvKey          = "TUMORSCOPE_API_KEY"
	allowRemoteEnvKey        = "TUMORSCOPE_ALLOW_REMOTE"
	readHeaderTimeout        = 5 * time.Second
	readTimeout              = 30 * time.Second
	writeTimeout             = 120 * time.Second
	idleTimeout              = 60 * time.Second
	analysisConcurrencyLimit = 2

	loginMaxFailures = 10
	loginWindow      = 5 * time.Minute
	loginBlockedFor  = 15 * time.Minute

	defaultMaxUploadBytes     = 16 << 20
	defaultMultipartMaxMemory = 8 << 20
)

// Options carries request-handling knobs derived from configuration.
type Options struct {
	IngestAPIKey       string
	MaxUploadBytes     int64
	MultipartMaxMemory int64
}

// Server wraps HTTP handlers for the TumorScope API.
type Server struct {
	addr            string
	store           *store.Store
	artifacts       *artifact.Store
	receiver        *upload.Receiver
	invoker         *analysis.Invoker
	authService     *AuthService
	logger          *slog.Logger
	ingestKey       string
	maxUploadBytes  int64
	multipartMemory int64
	loginLimiter    *loginRateLimiter
	analysisLimiter chan struct{}
}

// New creates a new server instance.
func New(addr string, st *store.Store, artifacts *artifact.Store, receiver *upload.Receiver, invoker *analysis.Invoker, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	ingestKey := strings.TrimSpace(opts.IngestAPIKey)
	if ingestKey == "" {
		ingestKey = strings.TrimSpace(os.Getenv(ingestKeyEnvKey))
	}
	maxUploadBytes := opts.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	multipartMemory := opts.MultipartMaxMemory
	if multipartMemory <= 0 {
		multipartMemory = defaultMultipartMaxMemory
	}

	return &Server{
		addr:            addr,
		store:           st,
		artifacts:       artifacts,
		receiver:        receiver,
		invoker:         invoker,
		authService:     NewAuthService(st),
		logger:          logger,
		ingestKey:       ingestKey,
		maxUploadBytes:  maxUploadBytes,
		multipartMemory: multipartMemory,
		loginLimiter:    newLoginRateLimiter(loginMaxFailures, loginWindow, loginBlockedFor),
		analysisLimiter: make(chan struct{}, analysisConcurrencyLimit),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
