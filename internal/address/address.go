package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Address identifies a replaceable event as "kind:pubkey:d-tag".
// It is opaque to everything except this package and is compared by equality.
type Address string

// IsZero reports whether a is the empty address (no node).
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}

// Coordinate is the parsed form of an Address.
type Coordinate struct {
	Kind   int
	Pubkey string
	DTag   string
}

// Address formats c back into its string form.
func (c Coordinate) Address() Address {
	return New(c.Kind, c.Pubkey, c.DTag)
}

var ErrInvalid = errors.New("invalid address")

// New builds an address from its parts without validation.
func New(kind int, pubkey, dtag string) Address {
	return Address(strconv.Itoa(kind) + ":" + pubkey + ":" + dtag)
}

// Parse splits s into its coordinate. The d-tag may contain colons.
func Parse(s string) (Coordinate, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("%w: %q: expected kind:pubkey:d-tag", ErrInvalid, s)
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil || kind < 0 {
		return Coordinate{}, fmt.Errorf("%w: %q: bad kind", ErrInvalid, s)
	}
	if parts[1] == "" {
		return Coordinate{}, fmt.Errorf("%w: %q: empty pubkey", ErrInvalid, s)
	}
	return Coordinate{Kind: kind, Pubkey: parts[1], DTag: parts[2]}, nil
}

// Slug turns a heading into a d-tag fragment: lowercase letters and digits
// separated by single dashes.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
