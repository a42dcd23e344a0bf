// Package secret provides a string type for password-bearing configuration
// fields. Its printable forms are redacted so values can't leak through
// fmt, zap or redacted YAML output.
package secret

import (
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Mask replaces any non-empty secret in printable output.
const Mask = "******"

// Value holds a secret. Use Reveal to obtain the raw string.
type Value string

// String returns Mask for non-empty values.
func (v Value) String() string {
	if v == "" {
		return ""
	}
	return Mask
}

// GoString keeps %#v from printing the raw value.
func (v Value) GoString() string {
	return `secret.Value("` + v.String() + `")`
}

// Reveal returns the raw secret. Callers should only pass the result to the
// library that consumes it or to an explicit secrets file.
func (v Value) Reveal() string { return string(v) }

// IsZero reports whether the secret is unset.
func (v Value) IsZero() bool { return v == "" }

// MarshalYAML writes the raw value. WriteConfig is the only path that
// serializes a Config with secrets, and it must round-trip.
func (v Value) MarshalYAML() (interface{}, error) {
	return string(v), nil
}

// UnmarshalYAML accepts a plain scalar.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*v = Value(s)
	return nil
}

// Field returns a zap field that logs the masked form.
func Field(key string, v Value) zapcore.Field {
	return zapcore.Field{Key: key, Type: zapcore.StringType, String: v.String()}
}
