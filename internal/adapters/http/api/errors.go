package api

// Wire-level error codes shared with clients.
const (
	codeValidationFailed    = "VALIDATION_FAILED"
	codeRateLimited         = "RATE_LIMITED"
	codeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	codeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	codeBadRequest          = "BAD_REQUEST"
	codeInternal            = "INTERNAL"
)
