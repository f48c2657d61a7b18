package errors

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFieldsNil(t *testing.T) {
	assert.Empty(t, LogFields(nil))
}

func TestLogFieldsPlainError(t *testing.T) {
	fields := LogFields(errors.New("boom"))

	assert.Equal(t, "boom", fields["error"])
	assert.NotContains(t, fields, "error_code")
	assert.NotContains(t, fields, "retryable")
}

func TestLogFieldsAppError(t *testing.T) {
	err := New(ErrCodeDatabaseQuery, "insert failed").
		WithContext("operation", "save message").
		WithContext("phone", "5511****7766")

	fields := LogFields(err)

	assert.Equal(t, ErrCodeDatabaseQuery, fields["error_code"])
	assert.Equal(t, false, fields["retryable"])
	assert.Equal(t, "save message", fields["operation"])
	assert.Equal(t, "5511****7766", fields["phone"])
}

func TestLogAtLevelRetryable(t *testing.T) {
	logger, hook := test.NewNullLogger()

	err := WrapRetryable(errors.New("database is locked"), ErrCodeDatabaseQuery, "save message failed")
	require.True(t, IsRetryable(err))

	LogAtLevel(logger, err, "write will be retried")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "write will be retried", hook.LastEntry().Message)
	assert.Equal(t, true, hook.LastEntry().Data["retryable"])
}

func TestLogAtLevelPermanent(t *testing.T) {
	logger, hook := test.NewNullLogger()

	err := NewValidationError("phone", "abc", "must contain only digits")
	require.False(t, IsRetryable(err))

	LogAtLevel(logger, err, "rejected payload")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, ErrCodeValidationFailed, hook.LastEntry().Data["error_code"])
}

func TestLogAtLevelPlainError(t *testing.T) {
	logger, hook := test.NewNullLogger()

	LogAtLevel(logger, errors.New("disk full"), "cleanup failed")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "disk full", hook.LastEntry().Data["error"])
}
