package client

import "fmt"

// Messager is implemented by failure values that expose a human-readable
// message without being errors.
type Messager interface {
	Message() string
}

// envelopeMessager is implemented by [Envelope] values of any data type.
type envelopeMessager interface {
	envelopeMessage() string
}

// messageKeys are looked up, in order, on map-shaped failure values.
var messageKeys = []string{"message", "m", "msg"}

// Stringify renders any failure value as a human-readable string. Errors
// yield Error(), envelopes their m field, map-shaped values their first non-empty message, m or msg
// field, nil yields "undefined" and anything else its fmt form.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "undefined"
	case string:
		return x
	case error:
		return fmt.Sprint(x)
	case envelopeMessager:
		if s := x.envelopeMessage(); s != "" {
			return s
		}
	case map[string]any:
		for _, key := range messageKeys {
			if s, ok := x[key].(string); ok && s != "" {
				return s
			}
		}
	case map[string]string:
		for _, key := range messageKeys {
			if s := x[key]; s != "" {
				return s
			}
		}
	case Messager:
		if s := x.Message(); s != "" {
			return s
		}
	}

	return fmt.Sprint(v)
}
