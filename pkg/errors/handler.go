package errors

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger is the subset of the structured logger the handler writes to
type Logger interface {
	ErrorWithFields(msg string, fields map[string]interface{})
}

// ErrorHandler logs structured errors and renders them for the terminal
type ErrorHandler struct {
	mu       sync.Mutex
	out      io.Writer
	logger   Logger
	errorLog []ErrorLogEntry
	maxLog   int
}

// ErrorLogEntry represents a handled error
type ErrorLogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Code      ErrorCode              `json:"code"`
	Severity  ErrorSeverity          `json:"severity"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// NewErrorHandler creates a handler writing user-facing output to out.
// logger may be nil.
func NewErrorHandler(out io.Writer, logger Logger) *ErrorHandler {
	if out == nil {
		out = os.Stderr
	}
	return &ErrorHandler{
		out:    out,
		logger: logger,
		maxLog: 100,
	}
}

// Handle processes an error with full context
func (h *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Wrap(err, ErrCodeInternal, err.Error())
	}

	entry := ErrorLogEntry{
		Timestamp: appErr.Timestamp,
		Code:      appErr.Code,
		Severity:  appErr.Severity,
		Message:   appErr.Message,
		Context:   appErr.Context,
	}

	h.errorLog = append(h.errorLog, entry)
	if len(h.errorLog) > h.maxLog {
		h.errorLog = h.errorLog[1:]
	}

	if h.logger != nil {
		fields := map[string]interface{}{
			"code":     string(appErr.Code),
			"severity": string(appErr.Severity),
		}
		for k, v := range appErr.Context {
			fields[k] = v
		}
		if appErr.Cause != nil {
			fields["cause"] = appErr.Cause.Error()
		}
		h.logger.ErrorWithFields(appErr.Message, fields)
	}

	h.displayError(appErr)
}

// Entries returns a copy of the handled errors, oldest first
func (h *ErrorHandler) Entries() []ErrorLogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ErrorLogEntry, len(h.errorLog))
	copy(out, h.errorLog)
	return out
}

func (h *ErrorHandler) displayError(err *AppError) {
	var paint func(format string, a ...interface{}) string
	switch err.Severity {
	case SeverityCritical, SeverityError:
		paint = color.RedString
	case SeverityWarning:
		paint = color.YellowString
	default:
		paint = color.CyanString
	}

	fmt.Fprintf(h.out, "\n%s\n", paint("[%s] %s", err.Code, err.Message))

	if err.Cause != nil {
		fmt.Fprintf(h.out, "  cause: %v\n", err.Cause)
	}

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for k := range err.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(h.out, "\nContext:")
		for _, k := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", k, err.Context[k])
		}
	}

	if len(err.Suggestions) > 0 {
		fmt.Fprintln(h.out, "\nSuggestions:")
		for i, suggestion := range err.Suggestions {
			fmt.Fprintf(h.out, "  %d. %s\n", i+1, suggestion)
		}
	}
}
