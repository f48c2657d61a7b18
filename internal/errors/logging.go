package errors

import (
	"github.com/sirupsen/logrus"
)

// LogFields extracts structured fields from an error for logging. For an
// AppError the code, retryability and attached context are flattened into
// the field map; any other error yields just its message under "error".
func LogFields(err error) logrus.Fields {
	fields := logrus.Fields{}
	if err == nil {
		return fields
	}

	fields["error"] = err.Error()

	appErr, ok := err.(*AppError)
	if !ok {
		return fields
	}

	fields["error_code"] = appErr.Code
	fields["retryable"] = appErr.Retryable
	for k, v := range appErr.Context {
		fields[k] = v
	}
	return fields
}

// LogAtLevel logs err through logger at a severity matching its
// retryability: retryable failures are warnings (the operation will be
// tried again), permanent ones are errors.
func LogAtLevel(logger *logrus.Logger, err error, message string) {
	entry := logger.WithFields(LogFields(err))
	if IsRetryable(err) {
		entry.Warn(message)
		return
	}
	entry.Error(message)
}
