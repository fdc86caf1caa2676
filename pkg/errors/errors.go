package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeRetrieval represents failures fetching or rendering the source page
	ErrorTypeRetrieval ErrorType = "retrieval"
	// ErrorTypeRateLimit represents a source that is currently blocking us
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents HTML parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypePersistence represents snapshot read/write errors
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypeNotification represents delivery channel errors
	ErrorTypeNotification ErrorType = "notification"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlerError represents an error raised somewhere in the check cycle
type CrawlerError struct {
	Type     ErrorType
	Provider string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Provider, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if retrying in the next cycle may succeed
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRetrieval, ErrorTypeNotification, ErrorTypePersistence:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err wraps a CrawlerError that may clear by the next cycle.
// Errors from outside this package are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *CrawlerError
	if errors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return true
}

// New creates a new CrawlerError
func New(errType ErrorType, provider, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:     errType,
		Provider: provider,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// NewRetrieval creates a new retrieval error
func NewRetrieval(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeRetrieval, provider, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, provider, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(provider string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, provider, message, nil)
}

// NewPersistence creates a new persistence error
func NewPersistence(path, message string, err error) *CrawlerError {
	return New(ErrorTypePersistence, path, message, err)
}

// NewNotification creates a new notification error
func NewNotification(channel, message string, err error) *CrawlerError {
	return New(ErrorTypeNotification, channel, message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// IsType reports whether err wraps a CrawlerError of the given type
func IsType(err error, errType ErrorType) bool {
	var ce *CrawlerError
	return errors.As(err, &ce) && ce.Type == errType
}
