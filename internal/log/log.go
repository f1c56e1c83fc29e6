// Package log provides the structured logger used by the codec and CLI.
package log

// Log is the logging interface accepted across the module.
type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
	Enabled(level Level) bool
}

// Level is a logging severity.
type Level uint8

// Log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent Level = 0xFF
)

// ParseLevel maps a level name to a Level. ok is false for unknown names.
func ParseLevel(s string) (level Level, ok bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "silent", "none":
		return LevelSilent, true
	default:
		return LevelInfo, false
	}
}

// FieldType selects which constructor a Field maps to in the backend.
type FieldType uint8

// Field types.
const (
	UnknownType FieldType = iota
	BoolType
	IntType
	Int64Type
	Uint64Type
	StringType
	ErrorType
)

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Type  FieldType
	Value any
}

// Any constructs a field with an arbitrary value.
func Any(key string, val any) Field {
	return Field{Key: key, Type: UnknownType, Value: val}
}

// Bool constructs a bool field.
func Bool(key string, val bool) Field {
	return Field{Key: key, Type: BoolType, Value: val}
}

// Int constructs an int field.
func Int(key string, val int) Field {
	return Field{Key: key, Type: IntType, Value: val}
}

// Int64 constructs an int64 field.
func Int64(key string, val int64) Field {
	return Field{Key: key, Type: Int64Type, Value: val}
}

// Uint64 constructs a uint64 field.
func Uint64(key string, val uint64) Field {
	return Field{Key: key, Type: Uint64Type, Value: val}
}

// String constructs a string field.
func String(key string, val string) Field {
	return Field{Key: key, Type: StringType, Value: val}
}

// Err constructs an error field under the "error" key.
func Err(err error) Field {
	return Field{Key: "error", Type: ErrorType, Value: err}
}

type nop struct{}

// NewNop returns a logger that discards everything.
func NewNop() Log { return nop{} }

func (nop) Debug(string, ...Field)   {}
func (nop) Info(string, ...Field)    {}
func (nop) Warn(string, ...Field)    {}
func (nop) Error(string, ...Field)   {}
func (n nop) With(...Field) Log      { return n }
func (nop) Enabled(level Level) bool { return false }
