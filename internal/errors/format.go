package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ee, ok := err.(*EngineError)
	if !ok {
		// Wrap standard error
		ee = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	// Error message with code
	sb.WriteString(fmt.Sprintf("Error: %s\n", ee.Message))

	// Suggestion if available
	if ee.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ee.Suggestion))
	}

	// Code reference
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ee.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error.
// Suitable for machine consumption and structured logging.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ee, ok := err.(*EngineError)
	if !ok {
		// Wrap standard error
		ee = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ee.Code,
		Message:    ee.Message,
		Category:   string(ee.Category),
		Severity:   string(ee.Severity),
		Details:    ee.Details,
		Suggestion: ee.Suggestion,
	}

	if ee.Cause != nil {
		je.Cause = ee.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ee, ok := err.(*EngineError)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": ee.Code,
		"message":    ee.Message,
		"category":   string(ee.Category),
		"severity":   string(ee.Severity),
	}

	if ee.Cause != nil {
		result["cause"] = ee.Cause.Error()
	}

	if ee.Suggestion != "" {
		result["suggestion"] = ee.Suggestion
	}

	for k, v := range ee.Details {
		result["detail_"+k] = v
	}

	return result
}
