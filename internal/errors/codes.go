package errors

const (
	// Source and action failure kinds
	ErrUnavailable      ErrorCode = "unavailable"
	ErrTimeout          ErrorCode = "timeout"
	ErrPermissionDenied ErrorCode = "permission_denied"
	ErrNotFound         ErrorCode = "not_found"
	ErrExternalTool     ErrorCode = "external_tool_error"
	ErrUnsupported      ErrorCode = "unsupported"

	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"
)

var errorMessages = map[ErrorCode]string{
	ErrUnavailable:      "Source unavailable on this host",
	ErrTimeout:          "Operation timed out",
	ErrPermissionDenied: "Needs elevated privilege",
	ErrNotFound:         "Target no longer exists",
	ErrExternalTool:     "External tool reported failure",
	ErrUnsupported:      "Not supported on this host",
	ErrInternal:         "Internal error occurred",
	ErrInvalidArgument:  "Invalid argument provided",
	ErrInvalidConfig:    "Invalid configuration",
	ErrInvalidInterval:  "Invalid interval value",
	ErrReadConfig:       "Failed to read configuration",
	ErrBindFlags:        "Failed to bind flags",
	ErrInvalidLogLevel:  "Invalid log level",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
