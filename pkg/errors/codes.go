package errors

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Fatal           bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrConfiguration: {
		Code:            ErrConfiguration,
		Fatal:           true,
		Description:     "Configuration is invalid or the storage provider could not be constructed",
		SuggestedAction: "Check DATABASE_URL / DB_* variables and ~/.dupdetect/config.yaml",
	},
	ErrFetchFailed: {
		Code:            ErrFetchFailed,
		Fatal:           true,
		Description:     "Loading an entity collection failed",
		SuggestedAction: "Check database connectivity and table permissions: dupdetect db status",
	},
	ErrUpsertBatchFailed: {
		Code:            ErrUpsertBatchFailed,
		Fatal:           false,
		Description:     "A batch of detected pairs could not be written",
		SuggestedAction: "Rerun detection; upserts are idempotent. Check logs for the failing batch index",
	},
	ErrClearFailed: {
		Code:            ErrClearFailed,
		Fatal:           true,
		Description:     "Clearing stored pairs before the run failed",
		SuggestedAction: "Check write permissions on detected_duplicates, or rerun without --clear",
	},
	ErrLockHeld: {
		Code:            ErrLockHeld,
		Fatal:           true,
		Description:     "Another detection run holds the run lock",
		SuggestedAction: "Wait for the other run to finish, or use --dry-run which does not take the lock",
	},
	ErrContextCancelled: {
		Code:            ErrContextCancelled,
		Fatal:           true,
		Description:     "Operation cancelled by user or system",
		SuggestedAction: "Rerun detection; no partial state needs cleanup",
	},
	ErrTimeout: {
		Code:            ErrTimeout,
		Fatal:           true,
		Description:     "Operation exceeded the configured timeout",
		SuggestedAction: "Raise the timeout: --timeout or DUPDETECT_TIMEOUT",
	},
}

// IsFatalCode returns true if the code aborts the run with a non-zero exit.
func IsFatalCode(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Fatal
	}
	return true
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Rerun with --debug for more details"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
