package browsererr

import "errors"

// Record is the user-facing rendering of an error.
type Record struct {
	ErrorType           string         `json:"error_type"`
	Message             string         `json:"message"`
	Details             map[string]any `json:"details"`
	RecoverySuggestions []string       `json:"recovery_suggestions,omitempty"`
}

// ToRecord converts any error into a Record. Unclassified errors are reported
// as UnexpectedError without being re-wrapped.
func ToRecord(err error) Record {
	var be *Error
	if errors.As(err, &be) {
		details := make(map[string]any, len(be.Details))
		for k, v := range be.Details {
			details[k] = v
		}
		return Record{
			ErrorType:           string(be.Kind),
			Message:             be.Message,
			Details:             details,
			RecoverySuggestions: append([]string(nil), be.Suggestions...),
		}
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Record{
		ErrorType:           string(KindUnexpected),
		Message:             msg,
		Details:             map[string]any{},
		RecoverySuggestions: Suggestions(KindUnexpected),
	}
}
