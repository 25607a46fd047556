// Package browsererr defines the closed error taxonomy shared by the parser,
// the dispatcher and the HTTP boundary.
package browsererr

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// Kind identifies one member of the error taxonomy.
type Kind string

const (
	KindElementNotFound       Kind = "ElementNotFoundError"
	KindNavigation            Kind = "NavigationError"
	KindTimeout               Kind = "TimeoutError"
	KindAuthentication        Kind = "AuthenticationError"
	KindInvalidCommand        Kind = "InvalidCommandError"
	KindBrowserInitialization Kind = "BrowserInitializationError"
	KindUnknownAction         Kind = "UnknownActionError"
	KindUnexpected            Kind = "UnexpectedError"
)

var suggestions = map[Kind][]string{
	KindElementNotFound: {
		"Check if the element identifier is correct",
		"Try waiting longer for the element to appear",
		"The page structure might have changed",
	},
	KindNavigation: {
		"Check if the URL is correct and accessible",
		"Verify your internet connection",
		"The website might be down or blocking automated access",
	},
	KindTimeout: {
		"Try increasing the timeout value",
		"Check if the page is loading slowly",
		"The operation might be blocked by the website",
	},
	KindAuthentication: {
		"Verify your credentials",
		"Check if the website requires two-factor authentication",
		"The website might have anti-bot measures in place",
	},
	KindInvalidCommand: {
		"Check the command syntax",
		"See documentation for supported commands",
		"Try rephrasing the command",
	},
	KindBrowserInitialization: {
		"Check if the browser is installed and accessible",
		"Verify that no other instances are running that might cause conflicts",
		"Try restarting the application",
	},
	KindUnknownAction: {
		"Use one of the supported actions",
		"Run `webpilot parse --list` to see the command grammar",
	},
	KindUnexpected: {
		"Retry the command",
		"Reset the browser session if the problem persists",
	},
}

// Suggestions returns the fixed recovery suggestions for a kind.
func Suggestions(kind Kind) []string {
	return append([]string(nil), suggestions[kind]...)
}

// Error is a classified failure. Values are built by the constructors in this
// package and are not modified once returned.
type Error struct {
	Kind        Kind
	Message     string
	Details     map[string]any
	Suggestions []string
	Cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && !strings.Contains(e.Message, e.Cause.Error()) {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

func newError(kind Kind, message string, cause error, details map[string]any) *Error {
	if details == nil {
		details = map[string]any{}
	}
	return &Error{
		Kind:        kind,
		Message:     message,
		Details:     details,
		Suggestions: Suggestions(kind),
		Cause:       cause,
	}
}

// Sentinels usable with errors.Is.
var (
	ErrElementNotFound       = &Error{Kind: KindElementNotFound}
	ErrNavigation            = &Error{Kind: KindNavigation}
	ErrTimeout               = &Error{Kind: KindTimeout}
	ErrAuthentication        = &Error{Kind: KindAuthentication}
	ErrInvalidCommand        = &Error{Kind: KindInvalidCommand}
	ErrBrowserInitialization = &Error{Kind: KindBrowserInitialization}
	ErrUnknownAction         = &Error{Kind: KindUnknownAction}
	ErrUnexpected            = &Error{Kind: KindUnexpected}
)

// ElementNotFound reports that every resolution strategy was exhausted.
func ElementNotFound(message, identifier string) *Error {
	details := map[string]any{}
	if identifier != "" {
		details["element_identifier"] = identifier
	}
	return newError(KindElementNotFound, message, nil, details)
}

// Navigation reports a failed navigation or load settle.
func Navigation(message, url string, cause error) *Error {
	details := map[string]any{}
	if url != "" {
		details["url"] = url
	}
	return newError(KindNavigation, message, cause, details)
}

// Timeout reports a bounded wait that elapsed.
func Timeout(message, operation string, timeoutMs int64) *Error {
	details := map[string]any{}
	if operation != "" {
		details["operation"] = operation
	}
	if timeoutMs > 0 {
		details["timeout_ms"] = timeoutMs
	}
	return newError(KindTimeout, message, nil, details)
}

// Authentication reports a login flow failure that is not plain element absence.
func Authentication(message, website string) *Error {
	details := map[string]any{}
	if website != "" {
		details["website"] = website
	}
	return newError(KindAuthentication, message, nil, details)
}

// InvalidCommand reports text or parameters that cannot be turned into an action.
func InvalidCommand(message, command string) *Error {
	details := map[string]any{}
	if command != "" {
		details["command"] = command
	}
	return newError(KindInvalidCommand, message, nil, details)
}

// InvalidParams reports parameters rejected by the action registry.
func InvalidParams(message, action string, keys []string) *Error {
	return newError(KindInvalidCommand, message, nil, map[string]any{
		"action": action,
		"params": keys,
	})
}

// BrowserInitialization reports a failed session setup.
func BrowserInitialization(message, browserType string, cause error) *Error {
	details := map[string]any{}
	if browserType != "" {
		details["browser_type"] = browserType
	}
	return newError(KindBrowserInitialization, message, cause, details)
}

// UnknownAction reports an action missing from the registry.
func UnknownAction(action string) *Error {
	return newError(KindUnknownAction, "Unknown action: "+action, nil, map[string]any{"action": action})
}

// Unexpected wraps an unclassified failure with the originating action and a
// stack trace captured at the wrap site.
func Unexpected(action string, cause error) *Error {
	msg := "unexpected failure"
	if cause != nil {
		msg = cause.Error()
	}
	if action != "" {
		msg = fmt.Sprintf("Failed to execute %s: %s", action, msg)
	}
	return newError(KindUnexpected, msg, cause, map[string]any{
		"action":    action,
		"traceback": string(debug.Stack()),
	})
}

// Wrap passes taxonomy errors through unchanged and classifies anything else as
// UnexpectedError attributed to action.
func Wrap(action string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return Unexpected(action, err)
}

// KindOf returns the taxonomy kind of err, or KindUnexpected for unclassified
// errors.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnexpected
}
