package input

import (
	"fmt"
	"strings"
)

// KeyKind distinguishes literal characters from named keys
type KeyKind uint8

const (
	KeyLiteral KeyKind = iota
	KeyBackspace
	KeyEnter
	KeySpace
)

// Key is one decoded token of a key sequence
type Key struct {
	Kind KeyKind
	Char rune // set for KeyLiteral only
}

// Named keys
var (
	Backspace = Key{Kind: KeyBackspace}
	Enter     = Key{Kind: KeyEnter}
	Space     = Key{Kind: KeySpace}
)

// Literal returns the key that types r
func Literal(r rune) Key {
	return Key{Kind: KeyLiteral, Char: r}
}

func (k Key) String() string {
	switch k.Kind {
	case KeyBackspace:
		return "backspace"
	case KeyEnter:
		return "enter"
	case KeySpace:
		return "space"
	default:
		return fmt.Sprintf("%q", k.Char)
	}
}

// KeyDelimiter separates the segments of a key sequence
const KeyDelimiter = "--"

var namedKeys = map[string]Key{
	"backspace": Backspace,
	"enter":     Enter,
	"space":     Space,
}

// ParseKeys decodes a "--" delimited key sequence such as "C--a--t--enter".
//
// Segments are split left to right without overlap. A segment that is exactly
// "backspace", "enter" or "space" becomes that key; any other segment yields
// one literal key per rune. An odd run of hyphens therefore leaves one literal
// '-' behind: "F-----o" is F, '-', o. Parsing never fails.
func ParseKeys(letter string) []Key {
	keys := make([]Key, 0, len(letter))
	for _, segment := range strings.Split(letter, KeyDelimiter) {
		if k, ok := namedKeys[segment]; ok {
			keys = append(keys, k)
			continue
		}
		for _, r := range segment {
			keys = append(keys, Literal(r))
		}
	}
	return keys
}
