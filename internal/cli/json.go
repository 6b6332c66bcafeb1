package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/rileyhilliard/slurmterm/internal/errors"
)

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeSlurmFailed    = "SLURM_FAILED"
	ErrCodeSlurmMissing   = "SLURM_NOT_FOUND"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeSSHFailed      = "SSH_CONNECTION_FAILED"
	ErrCodeUnknown        = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: true,
		Data:    data,
	})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Success: false,
		Error:   ErrorToJSON(err),
	})
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var stErr *errors.Error
	if stderrors.As(err, &stErr) {
		return &JSONError{
			Code:       mapErrorCode(stErr.Code, stErr.Message),
			Message:    stErr.Message,
			Suggestion: stErr.Suggestion,
		}
	}

	if errors.IsTimeout(err) {
		return &JSONError{Code: ErrCodeTimeout, Message: err.Error()}
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	msgLower := strings.ToLower(message)
	switch internalCode {
	case errors.ErrConfig:
		if strings.Contains(msgLower, "not found") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrSlurm, errors.ErrExec:
		if strings.Contains(msgLower, "not found") {
			return ErrCodeSlurmMissing
		}
		return ErrCodeSlurmFailed
	case errors.ErrTimeout:
		return ErrCodeTimeout
	case errors.ErrValidation:
		return ErrCodeInvalidInput
	case errors.ErrNotFound:
		return ErrCodeNotFound
	case errors.ErrSSH:
		return ErrCodeSSHFailed
	}
	return ErrCodeUnknown
}
