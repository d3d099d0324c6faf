package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldComponent = "component"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldRequestID = "request_id"
	FieldOperation = "operation"
	FieldStatus    = "status"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldPhase     = "phase"

	// Bus and stream fields.
	FieldChannel   = "channel"
	FieldStage     = "stage"
	FieldMessageID = "message_id"
	FieldStream    = "stream"
	FieldUser      = "user"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	logger.Info("published", logger.Fields("channel", "userChannel", "id", 42))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(op string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldError:     err.Error(),
	}
}

// DurationFields creates fields for a timed operation.
func DurationFields(op string, d time.Duration) map[string]interface{} {
	return map[string]interface{}{
		FieldOperation: op,
		FieldDuration:  d.Milliseconds(),
	}
}

// MergeFields combines field maps. Later maps win on key conflicts.
func MergeFields(fields ...map[string]interface{}) map[string]interface{} {
	n := 0
	for _, f := range fields {
		n += len(f)
	}
	out := make(map[string]interface{}, n)
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}
