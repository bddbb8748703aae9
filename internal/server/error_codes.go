package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidID       = 1004
	ErrCodeInvalidStatus   = 1005
	ErrCodeInvalidType     = 1006
	ErrCodeInvalidStrategy = 1007
	ErrCodeInvalidTenant   = 1008
	ErrCodeMissingRequired = 1009

	// Domain state (2xxx)
	ErrCodeGroupNotFound       = 2001
	ErrCodeFileNotFound        = 2002
	ErrCodeConflict            = 2102
	ErrCodeGroupContention     = 2103
	ErrCodeResolutionInvariant = 2104
	ErrCodeTenantMismatch      = 2105

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeForbidden         = 3002
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal        = 4001
	ErrCodeStoreFailure    = 4002
	ErrCodeIngestionFailed = 4003
	ErrCodeBlobFailure     = 4004
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
		return ErrCodeGroupNotFound
	case 409:
		return ErrCodeConflict
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
