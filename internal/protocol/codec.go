package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"github.com/titanous/json5"
)

// Expectation strings used in DecodeError reasons.
const (
	expectString   = "a string"
	expectKeys     = "a string of characters separated with '--'"
	expectInt32    = "a 32-bit signed integer"
	expectUint8    = "an 8-bit unsigned integer"
	expectUint16   = "a 16-bit unsigned integer"
	expectObject   = "an object"
	knownTypes     = "`aioc`, `cs`, `mmb`, `ksb`, `kib`"
	knownHandshake = "0, 56, 57, 58, 59, 60, 61"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt32
	kindUint8
	kindUint16
)

// field describes one required wire field of a message
type field struct {
	name   string
	kind   fieldKind
	expect string
}

// schemas lists the required fields of every message type, in wire order.
var schemas = map[MessageType][]field{
	TypeHandshake: {
		{name: "id", kind: kindUint8, expect: expectUint8},
	},
	TypeConnectionStatus: {
		{name: "sender", kind: kindString, expect: expectString},
		{name: "status", kind: kindString, expect: expectString},
		{name: "statusMessage", kind: kindString, expect: expectString},
	},
	TypeMouseMove: {
		{name: "x", kind: kindInt32, expect: expectInt32},
		{name: "y", kind: kindInt32, expect: expectInt32},
	},
	TypeKeyboardText: {
		{name: "letter", kind: kindString, expect: expectKeys},
		{name: "state", kind: kindUint8, expect: expectUint8},
	},
	TypeKeyboardCode: {
		{name: "letter", kind: kindUint16, expect: expectUint16},
		{name: "state", kind: kindUint8, expect: expectUint8},
	},
}

// Decode parses one datagram into a Command.
//
// The payload must be UTF-8 and is parsed as JSON5, so unquoted keys,
// single-quoted strings and trailing commas are accepted. Fields not
// belonging to the message type are ignored.
func Decode(data []byte) (Command, error) {
	if !utf8.Valid(data) {
		return nil, &EncodingError{Offset: invalidOffset(data)}
	}

	doc, err := parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, invalidType(describe(doc), expectObject)
	}

	rawType, ok := obj["type"]
	if !ok {
		return nil, missingField("type")
	}
	typeName, ok := rawType.(string)
	if !ok {
		return nil, invalidType(describe(rawType), expectString)
	}
	msgType := MessageType(typeName)
	schema, ok := schemas[msgType]
	if !ok {
		return nil, unknownVariant(typeName, knownTypes)
	}

	for _, f := range schema {
		if err := checkField(obj, f); err != nil {
			return nil, err
		}
	}

	switch msgType {
	case TypeHandshake:
		var m Handshake
		if err := populate(obj, &m); err != nil {
			return nil, err
		}
		if !m.Code.Valid() {
			return nil, unknownVariant(strconv.Itoa(int(m.Code)), knownHandshake)
		}
		return m, nil
	case TypeConnectionStatus:
		var m ConnectionStatus
		if err := populate(obj, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeMouseMove:
		var m MouseMove
		if err := populate(obj, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeKeyboardText:
		var m KeyboardText
		if err := populate(obj, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		var m KeyboardCode
		if err := populate(obj, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// parse runs the JSON5 parser, turning a parser panic on hostile input into
// a DecodeError.
func parse(data []byte) (doc interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, &DecodeError{Reason: fmt.Sprintf("syntax: parser failure: %v", r)}
		}
	}()
	if err := json5.Unmarshal(data, &doc); err != nil {
		return nil, &DecodeError{Reason: "syntax: " + err.Error()}
	}
	return doc, nil
}

// populate copies the already validated fields of obj into out.
func populate(obj map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(obj); err != nil {
		return &DecodeError{Reason: err.Error()}
	}
	return nil
}

func checkField(obj map[string]interface{}, f field) error {
	v, ok := obj[f.name]
	if !ok {
		return missingField(f.name)
	}

	if f.kind == kindString {
		if _, ok := v.(string); !ok {
			return invalidType(describe(v), f.expect)
		}
		return nil
	}

	n, ok := v.(float64)
	if !ok {
		return invalidType(describe(v), f.expect)
	}
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return invalidValue(describe(v), f.expect)
	}

	var lo, hi float64
	switch f.kind {
	case kindInt32:
		lo, hi = math.MinInt32, math.MaxInt32
	case kindUint8:
		lo, hi = 0, math.MaxUint8
	case kindUint16:
		lo, hi = 0, math.MaxUint16
	}
	if n < lo || n > hi {
		return invalidValue(describe(v), f.expect)
	}
	return nil
}

// describe renders a decoded JSON value for an error reason, e.g. "number `4`".
func describe(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("boolean `%t`", t)
	case float64:
		return fmt.Sprintf("number `%s`", strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		return fmt.Sprintf("string %q", t)
	case []interface{}:
		return "sequence"
	case map[string]interface{}:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func invalidOffset(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}

// Encode renders c in canonical form: strict JSON, "type" first, then the
// fields of the message in declaration order. Values Decode would reject, an
// unknown handshake code or text that is not UTF-8, are refused.
func Encode(c Command) ([]byte, error) {
	var v interface{}
	switch m := c.(type) {
	case Handshake:
		if !m.Code.Valid() {
			return nil, fmt.Errorf("encode %s: unknown handshake code %d", m.Type(), uint8(m.Code))
		}
		v = struct {
			Type MessageType `json:"type"`
			Handshake
		}{m.Type(), m}
	case ConnectionStatus:
		if err := checkText(m.Type(), m.Sender, m.Status, m.Message); err != nil {
			return nil, err
		}
		v = struct {
			Type MessageType `json:"type"`
			ConnectionStatus
		}{m.Type(), m}
	case MouseMove:
		v = struct {
			Type MessageType `json:"type"`
			MouseMove
		}{m.Type(), m}
	case KeyboardText:
		if err := checkText(m.Type(), m.Letter); err != nil {
			return nil, err
		}
		v = struct {
			Type MessageType `json:"type"`
			KeyboardText
		}{m.Type(), m}
	case KeyboardCode:
		v = struct {
			Type MessageType `json:"type"`
			KeyboardCode
		}{m.Type(), m}
	default:
		return nil, fmt.Errorf("unsupported message type: %T", c)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func checkText(t MessageType, fields ...string) error {
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return fmt.Errorf("encode %s: %w", t, &EncodingError{Offset: invalidOffset([]byte(f))})
		}
	}
	return nil
}
