package errors

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeMissingInput, "No input"),
			expected: "[DMS1001] ERROR: No input",
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeMissingInput, "No input").
				WithSuggestions("Check paths", "Check extension"),
			expected: "[DMS1001] ERROR: No input\nSuggestions:\n  1. Check paths\n  2. Check extension",
		},
		{
			name: "context is not rendered in the message",
			err: New(ErrCodeMissingInput, "No input").
				WithContext("facts", "/data/facts"),
			expected: "[DMS1001] ERROR: No input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("IO Error: No space left on device")

	appErr := SQLError("Failed to write partitioned store", "COPY (SELECT 1) TO '/out'", baseErr)

	require.NotNil(t, appErr)
	assert.Equal(t, baseErr, appErr.Cause)
	assert.Equal(t, ErrCodeSQLExecution, appErr.Code)
	assert.Equal(t, SeverityCritical, appErr.Severity)
	assert.ErrorIs(t, appErr, baseErr)
}

func TestWrapInheritsContext(t *testing.T) {
	inner := New(ErrCodeFileOperation, "remove failed").WithContext("path", "/out")
	outer := Wrap(inner, ErrCodeInternal, "build aborted")

	assert.Equal(t, "/out", outer.Context["path"])
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestMissingInputErrorNamesEveryInput(t *testing.T) {
	err := MissingInputError(map[string]string{
		"geo":   "/dims/geo/*.parquet",
		"facts": "/raw/**/*.parquet",
	})

	assert.Equal(t, ErrCodeMissingInput, err.Code)
	assert.Contains(t, err.Message, "facts (/raw/**/*.parquet)")
	assert.Contains(t, err.Message, "geo (/dims/geo/*.parquet)")
	assert.Equal(t, []string{"facts", "geo"}, err.Context["missing"])
}

func TestSQLErrorWithoutCause(t *testing.T) {
	err := SQLError("query failed", "SELECT 1", nil)
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeSQLExecution, err.Code)
	assert.Equal(t, "SELECT 1", err.Context["query"])
}

func TestSQLErrorTimeout(t *testing.T) {
	err := SQLError("query failed", "SELECT 1", fmt.Errorf("context deadline exceeded"))
	assert.Equal(t, ErrCodeSQLTimeout, err.Code)
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("build: %w", EngineError("open failed", fmt.Errorf("driver missing")))

	assert.True(t, HasCode(err, ErrCodeEngineUnavailable))
	assert.False(t, HasCode(err, ErrCodeMissingInput))
	assert.Equal(t, ErrCodeEngineUnavailable, GetErrorCode(err))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("plain")))
}

type recordingLogger struct {
	msgs   []string
	fields []map[string]interface{}
}

func (r *recordingLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	r.msgs = append(r.msgs, msg)
	r.fields = append(r.fields, fields)
}

func TestErrorHandlerHandle(t *testing.T) {
	var out bytes.Buffer
	logger := &recordingLogger{}
	h := NewErrorHandler(&out, logger)

	h.Handle(FileSystemError("Failed to clear output directory", "/store", fmt.Errorf("permission denied")))
	h.Handle(fmt.Errorf("plain failure"))
	h.Handle(nil)

	require.Len(t, h.Entries(), 2)
	assert.Equal(t, ErrCodeFilePermission, h.Entries()[0].Code)
	assert.Equal(t, ErrCodeInternal, h.Entries()[1].Code)

	require.Len(t, logger.msgs, 2)
	assert.Equal(t, "/store", logger.fields[0]["path"])
	assert.Equal(t, "permission denied", logger.fields[0]["cause"])

	assert.Contains(t, out.String(), "Failed to clear output directory")
	assert.Contains(t, out.String(), "path: /store")
}
