package properties

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind string

const (
	KindNil    Kind = "nil"
	KindString Kind = "string"
	KindLong   Kind = "long"
	KindBool   Kind = "bool"
	KindList   Kind = "list"
	KindSet    Kind = "set"
	KindBag    Kind = "bag"
)

// Value is a tagged variant covering every property type that appears in
// an export stream: scalars, ordered lists, insertion-ordered sets, and
// nested bags. Unknown extension data never produces a Value; the reader
// skips it instead.
type Value struct {
	Kind  Kind
	Str   string
	Num   int64
	Flag  bool
	Elems []Value
	Inner *Bag
}

// Nil returns the absent value.
func Nil() Value { return Value{Kind: KindNil} }

// String wraps a string scalar.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Long wraps an integer scalar.
func Long(n int64) Value { return Value{Kind: KindLong, Num: n} }

// Bool wraps a boolean scalar.
func Bool(b bool) Value { return Value{Kind: KindBool, Flag: b} }

// List wraps an ordered sequence of values.
func List(elems []Value) Value { return Value{Kind: KindList, Elems: elems} }

// Set wraps a sequence of values, dropping duplicates while keeping the
// first-seen order.
func Set(elems []Value) Value {
	seen := make(map[string]struct{}, len(elems))
	out := make([]Value, 0, len(elems))
	for _, e := range elems {
		key := e.canonical()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return Value{Kind: KindSet, Elems: out}
}

// Nested wraps a nested bag.
func Nested(b *Bag) Value { return Value{Kind: KindBag, Inner: b} }

// IsNil reports whether the value is absent.
func (v Value) IsNil() bool { return v.Kind == KindNil || v.Kind == "" }

// AsString renders the value as a string. Scalars render to their
// textual form; collections and bags have no string form.
func (v Value) AsString() (string, bool) {
	switch v.Kind {
	case KindString:
		return v.Str, true
	case KindLong:
		return strconv.FormatInt(v.Num, 10), true
	case KindBool:
		return strconv.FormatBool(v.Flag), true
	default:
		return "", false
	}
}

// AsLong coerces the value to an integer. String scalars are parsed;
// a failed parse reports false rather than an error so callers can fall
// back to a default.
func (v Value) AsLong() (int64, bool) {
	switch v.Kind {
	case KindLong:
		return v.Num, true
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsBool coerces the value to a boolean.
func (v Value) AsBool() (bool, bool) {
	switch v.Kind {
	case KindBool:
		return v.Flag, true
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// AsList returns the element slice for lists and sets.
func (v Value) AsList() ([]Value, bool) {
	if v.Kind == KindList || v.Kind == KindSet {
		return v.Elems, true
	}
	return nil, false
}

// canonical returns a stable identity string used for set deduplication.
func (v Value) canonical() string {
	switch v.Kind {
	case KindString:
		return "s:" + v.Str
	case KindLong:
		return "l:" + strconv.FormatInt(v.Num, 10)
	case KindBool:
		return "b:" + strconv.FormatBool(v.Flag)
	case KindList, KindSet:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.canonical()
		}
		return string(v.Kind) + ":[" + strings.Join(parts, ",") + "]"
	case KindBag:
		if v.Inner == nil {
			return "bag:"
		}
		return "bag:" + strings.Join(v.Inner.Keys(), ",")
	default:
		return "nil"
	}
}

// wireValue is the JSON representation of a Value.
type wireValue struct {
	Type  Kind        `json:"t"`
	Str   *string     `json:"s,omitempty"`
	Num   *int64      `json:"n,omitempty"`
	Flag  *bool       `json:"b,omitempty"`
	Elems []wireValue `json:"e,omitempty"`
	Inner []wireEntry `json:"m,omitempty"`
}

func toWire(v Value) wireValue {
	w := wireValue{Type: v.Kind}
	switch v.Kind {
	case KindString:
		w.Str = &v.Str
	case KindLong:
		w.Num = &v.Num
	case KindBool:
		w.Flag = &v.Flag
	case KindList, KindSet:
		w.Elems = make([]wireValue, len(v.Elems))
		for i, e := range v.Elems {
			w.Elems[i] = toWire(e)
		}
	case KindBag:
		if v.Inner != nil {
			w.Inner = v.Inner.wireEntries()
		}
	}
	return w
}

func fromWire(w wireValue) (Value, error) {
	switch w.Type {
	case KindNil, "":
		return Nil(), nil
	case KindString:
		if w.Str == nil {
			return String(""), nil
		}
		return String(*w.Str), nil
	case KindLong:
		if w.Num == nil {
			return Value{}, fmt.Errorf("long value missing payload")
		}
		return Long(*w.Num), nil
	case KindBool:
		if w.Flag == nil {
			return Value{}, fmt.Errorf("bool value missing payload")
		}
		return Bool(*w.Flag), nil
	case KindList, KindSet:
		elems := make([]Value, 0, len(w.Elems))
		for _, we := range w.Elems {
			e, err := fromWire(we)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, e)
		}
		if w.Type == KindSet {
			return Set(elems), nil
		}
		return List(elems), nil
	case KindBag:
		b := New()
		if err := b.applyWireEntries(w.Inner); err != nil {
			return Value{}, err
		}
		return Nested(b), nil
	default:
		return Value{}, fmt.Errorf("unknown value type %q", w.Type)
	}
}
