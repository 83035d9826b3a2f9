package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeMissingRequired   = 1003
	ErrCodeInvalidID         = 1004
	ErrCodeNoImageFile       = 1005
	ErrCodeInvalidConfidence = 1006

	// Domain state (2xxx)
	ErrCodeResultNotFound   = 2001
	ErrCodeUserNotFound     = 2002
	ErrCodeArtifactNotFound = 2003
	ErrCodeEmailExists      = 2101

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodeInvalidAPIKey     = 3004

	// Analysis pipeline (4xxx)
	ErrCodeProcessingFailed  = 4001
	ErrCodeProcessingTimeout = 4002
	ErrCodeMissingOutput     = 4003
	ErrCodeAnalyzerMissing   = 4101

	// Internal/system (5xxx)
	ErrCodeInternal     = 5001
	ErrCodeStoreFailure = 5002
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeForbidden
	case 404:
		return ErrCodeResultNotFound
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
