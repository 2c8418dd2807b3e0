package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the upstream provider name.
	FieldProvider = "ai_provider"
	// FieldCapability is the structured log field key for the provider capability in use.
	FieldCapability = "ai_capability"
	// FieldSession is the structured log field key for the interview session id.
	FieldSession = "session_id"
	// FieldStage is the structured log field key for the session stage.
	FieldStage = "stage"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ProviderFields describes which provider serves which capability.
func ProviderFields(provider, capability string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldCapability, Value: capability},
	)
}

// WithProviderFields attaches the provider fields to logger.
func WithProviderFields(logger *zap.Logger, provider, capability string) *zap.Logger {
	return WithFields(logger, ProviderFields(provider, capability)...)
}

// WithSession scopes logger to one interview session.
func WithSession(logger *zap.Logger, sessionID string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldSession, Value: sessionID})...)
}
