package ldap

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-hclog"
)

// loggerOrNull returns l, or a logger that discards everything when l is nil.
func loggerOrNull(l hclog.Logger) hclog.Logger {
	if l == nil {
		return hclog.NewNullLogger()
	}
	return l
}

// fieldArgs flattens a field map into hclog key/value pairs with stable ordering.
func fieldArgs(fields map[string]any) []any {
	keys := slices.Sorted(maps.Keys(fields))
	args := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}

// LogOperation is a helper function to log an operation with timing.
func LogOperation(logger hclog.Logger, operation string, fields map[string]any, fn func() error) error {
	logger = loggerOrNull(logger)
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = operation

	logger.Debug("starting operation", fieldArgs(SanitizeFields(fields))...)

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	switch {
	case err == nil:
		logger.Debug("operation completed", fieldArgs(SanitizeFields(fields))...)
	case IsUserLevel(err):
		// Labelled per-user failures are reported by the caller.
		fields["error"] = err.Error()
		logger.Debug("operation finished without a result", fieldArgs(SanitizeFields(fields))...)
	default:
		fields["error"] = err.Error()
		logger.Error("operation failed", fieldArgs(SanitizeFields(fields))...)
	}

	return err
}

// LogLDAPError logs LDAP-specific error information.
func LogLDAPError(logger hclog.Logger, operation string, err error, fields map[string]any) {
	logger = loggerOrNull(logger)
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["operation"] = operation
	fields["error"] = err.Error()

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		fields["ldap_result_code"] = resultErr.ResultCode
		if resultErr.MatchedDN != "" {
			fields["ldap_matched_dn"] = resultErr.MatchedDN
		}
		if resultErr.Err != nil {
			fields["ldap_diagnostic_message"] = resultErr.Err.Error()
		}
	}

	logger.Error("LDAP operation failed", fieldArgs(SanitizeFields(fields))...)
}

// LogConnectionEvent logs connection-related events.
func LogConnectionEvent(logger hclog.Logger, event string, fields map[string]any) {
	logger = loggerOrNull(logger)
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event
	args := fieldArgs(SanitizeFields(fields))

	switch event {
	case "connection_established", "authentication_success":
		logger.Debug("connection event", args...)
	case "connection_failed", "authentication_failed":
		logger.Warn("connection event", args...)
	default:
		logger.Trace("connection event", args...)
	}
}

// LogKerberosEvent logs Kerberos-specific events.
func LogKerberosEvent(logger hclog.Logger, event string, fields map[string]any) {
	logger = loggerOrNull(logger)
	if fields == nil {
		fields = make(map[string]any)
	}

	fields["event"] = event
	args := fieldArgs(SanitizeFields(fields))

	switch event {
	case "client_created", "principal_resolved":
		logger.Debug("kerberos event", args...)
	case "client_creation_failed":
		logger.Error("kerberos event", args...)
	default:
		logger.Trace("kerberos event", args...)
	}
}

// SanitizeFields removes sensitive information from log fields.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":    true,
		"passwd":      true,
		"secret":      true,
		"token":       true,
		"credential":  true,
		"credentials": true,
	}

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && containsSensitivePattern(str) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

// containsSensitivePattern checks if a string contains patterns that might be sensitive.
func containsSensitivePattern(s string) bool {
	patterns := []string{
		"password=",
		"passwd=",
		"secret=",
		"credentials=",
	}

	lower := strings.ToLower(s)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}
