package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. Object members keep their document order and
// numbers keep their raw literal so values round-trip byte-for-byte.
type Value struct {
	kind    Kind
	b       bool
	raw     string
	s       string
	items   []Value
	members []Member
}

func NewNull() Value { return Value{kind: Null} }
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }
func NewString(s string) Value { return Value{kind: String, s: s} }
func NewArray(items ...Value) Value { return Value{kind: Array, items: append([]Value{}, items...)} }

func NewObject(members ...Member) Value {
	return Value{kind: Object, members: append([]Member{}, members...)}
}

func NewNumber(literal string) Value {
	return Value{kind: Number, raw: literal}
}

func FromResult(r gjson.Result) Value {
	switch {
	case !r.Exists():
		return NewNull()
	case r.IsObject():
		var members []Member
		r.ForEach(func(k, v gjson.Result) bool {
			members = append(members, Member{Key: k.String(), Value: FromResult(v)})
			return true
		})
		return Value{kind: Object, members: members}
	case r.IsArray():
		var items []Value
		r.ForEach(func(_, v gjson.Result) bool {
			items = append(items, FromResult(v))
			return true
		})
		return Value{kind: Array, items: items}
	}

	switch r.Type {
	case gjson.True:
		return NewBool(true)
	case gjson.False:
		return NewBool(false)
	case gjson.Number:
		return NewNumber(r.Raw)
	case gjson.String:
		return NewString(r.Str)
	default:
		return NewNull()
	}
}

func Parse(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, fmt.Errorf("invalid json")
	}
	return FromResult(gjson.ParseBytes(data)), nil
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }
func (v Value) Bool() bool { return v.b }
func (v Value) Str() string { return v.s }
func (v Value) Literal() string { return v.raw }
func (v Value) Len() int { return len(v.items) + len(v.members) }
func (v Value) Items() []Value { return append([]Value{}, v.items...) }
func (v Value) Members() []Member { return append([]Member{}, v.members...) }

func (v Value) Float() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	return gjson.Parse(v.raw).Float(), true
}

func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == other.b
	case String:
		return v.s == other.s
	case Number:
		if v.raw == other.raw {
			return true
		}
		a, _ := v.Float()
		b, _ := other.Float()
		return a == b
	case Array:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(v.members) != len(other.members) {
			return false
		}
		for i := range v.members {
			if v.members[i].Key != other.members[i].Key || !v.members[i].Value.Equal(other.members[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(v.raw)
	case String:
		return writeString(buf, v.s)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("jsonval: unknown kind %d", int(v.kind))
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
