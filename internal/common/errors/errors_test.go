// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeIntentParsingFailed, "COLLABORATOR"},
		{ErrCodeLLMSynthesisFailed, "COLLABORATOR"},
		{ErrCodeSearchQueryFailed, "SEARCH"},
		{ErrCodeIndexNotFound, "SEARCH"},
		{ErrCodeQueryExecutionFailed, "DATABASE"},
		{ErrCodeDatabaseConnectionFailed, "DATABASE"},
		{ErrCodeTurnDeadlineExceeded, "PIPELINE"},
		{ErrCodeSessionStoreFailed, "PIPELINE"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeQueryExecutionFailed))
	assert.Equal(t, 2, GetRetryCount(ErrCodeIntentAPITimeout))
	assert.Equal(t, 1, GetRetryCount(ErrCodeLLMTimeout))
	assert.Equal(t, 0, GetRetryCount(ErrCodeTurnDeadlineExceeded))

	assert.True(t, IsRetryableErrorCode(ErrCodeSearchQueryFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeQueryPlanningFailed))
}

func TestStandardError_ErrorString(t *testing.T) {
	err := NewQueryExecutionFailedError("postgres", errors.New("connection refused"))

	assert.Contains(t, err.Error(), "QUERY_EXECUTION_FAILED")
	assert.Contains(t, err.Details, "connection refused")
	assert.True(t, err.Retryable)
}
