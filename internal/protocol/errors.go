package protocol

import "fmt"

// EncodingError is returned when a datagram is not valid UTF-8
type EncodingError struct {
	Offset int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid utf-8 sequence at byte %d", e.Offset)
}

// DecodeError is returned when a datagram is valid text but not a valid message.
// Reason starts with "missing field", "invalid type", "invalid value",
// "unknown variant" or "syntax".
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode message: " + e.Reason
}

func missingField(name string) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf("missing field `%s`", name)}
}

func invalidType(unexpected, expected string) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf("invalid type: %s, expected %s", unexpected, expected)}
}

func invalidValue(unexpected, expected string) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf("invalid value: %s, expected %s", unexpected, expected)}
}

func unknownVariant(variant, expected string) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf("unknown variant `%s`, expected one of %s", variant, expected)}
}
