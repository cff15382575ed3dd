package event

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/dgallion1/alexandria/internal/address"
)

// Publication event kinds.
const (
	KindIndex   = 30040 // Lists child events in "a" tags.
	KindSection = 30041 // Leaf content.
)

// Event is a Nostr event. Only the fields publications use are interpreted.
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig,omitempty"`
}

// TagValue returns the first value of the first tag named name.
func (e *Event) TagValue(name string) string {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

// TagValues returns the first value of every tag named name, in order.
func (e *Event) TagValues(name string) []string {
	var out []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			out = append(out, tag[1])
		}
	}
	return out
}

func (e *Event) DTag() string  { return e.TagValue("d") }
func (e *Event) Title() string { return e.TagValue("title") }

// IsIndex reports whether the event can have children.
func (e *Event) IsIndex() bool {
	return e.Kind == KindIndex
}

// Address returns the replaceable-event address of e.
func (e *Event) Address() address.Address {
	return address.New(e.Kind, e.Pubkey, e.DTag())
}

// ChildAddresses returns the "a" tag references in tag order.
func (e *Event) ChildAddresses() []address.Address {
	vals := e.TagValues("a")
	out := make([]address.Address, 0, len(vals))
	for _, v := range vals {
		out = append(out, address.Address(v))
	}
	return out
}

// ComputeID returns the NIP-01 event id: the hex sha256 of
// [0,pubkey,created_at,kind,tags,content] serialized without whitespace.
func (e *Event) ComputeID() string {
	sum := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(sum[:])
}

// Serialize returns the NIP-01 commitment array the id is hashed from.
// Strings escape only the seven characters NIP-01 names; everything else,
// U+2028 and invalid UTF-8 included, is written byte for byte.
func (e *Event) Serialize() []byte {
	b := make([]byte, 0, 64+len(e.Pubkey)+len(e.Content))
	b = append(b, "[0,"...)
	b = appendString(b, e.Pubkey)
	b = append(b, ',')
	b = strconv.AppendInt(b, e.CreatedAt, 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(e.Kind), 10)
	b = append(b, ",["...)
	for i, tag := range e.Tags {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '[')
		for j, v := range tag {
			if j > 0 {
				b = append(b, ',')
			}
			b = appendString(b, v)
		}
		b = append(b, ']')
	}
	b = append(b, "],"...)
	b = appendString(b, e.Content)
	return append(b, ']')
}

func appendString(b []byte, s string) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b = append(b, '\\', '"')
		case '\\':
			b = append(b, '\\', '\\')
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		case '\b':
			b = append(b, '\\', 'b')
		case '\f':
			b = append(b, '\\', 'f')
		default:
			b = append(b, c)
		}
	}
	return append(b, '"')
}
