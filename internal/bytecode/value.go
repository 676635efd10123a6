package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value represents a runtime value in the bytecode VM.
// This is a simple tagged union implementation for Ember's data model.
type Value struct {
	Data any
	Type ValueType
}

// ValueType represents the type tag for a Value.
type ValueType byte

const (
	// ValueNil is the zero Value. It is internal to the VM and never
	// observable from Ember programs.
	ValueNil ValueType = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValueList
	ValueQuot
	ValueChar
)

// ValueTypeNames maps value types to their string names for diagnostics.
var ValueTypeNames = [...]string{
	ValueNil:    "nil",
	ValueBool:   "Boolean",
	ValueInt:    "Integer",
	ValueFloat:  "Float",
	ValueString: "String",
	ValueList:   "List",
	ValueQuot:   "Quotation",
	ValueChar:   "Character",
}

// String returns a string representation of the value type.
func (vt ValueType) String() string {
	if int(vt) < len(ValueTypeNames) {
		return ValueTypeNames[vt]
	}
	return "unknown"
}

// Helper constructors for the value variants.

func NilValue() Value {
	return Value{Type: ValueNil, Data: nil}
}

func BoolValue(b bool) Value {
	return Value{Type: ValueBool, Data: b}
}

func IntValue(i int64) Value {
	return Value{Type: ValueInt, Data: i}
}

func FloatValue(f float64) Value {
	return Value{Type: ValueFloat, Data: f}
}

func StringValue(s string) Value {
	return Value{Type: ValueString, Data: s}
}

// ListValue constructs a Value holding a list instance.
func ListValue(list *ListInstance) Value {
	return Value{Type: ValueList, Data: list}
}

// QuotValue constructs a Value referencing a compiled code object.
// The chunk is shared, never copied; its lifetime is the owning program.
func QuotValue(chunk *Chunk) Value {
	return Value{Type: ValueQuot, Data: chunk}
}

// CharValue constructs a Value holding a single Unicode scalar value.
func CharValue(r rune) Value {
	return Value{Type: ValueChar, Data: r}
}

// Type checking methods.
func (v Value) IsBool() bool   { return v.Type == ValueBool }
func (v Value) IsInt() bool    { return v.Type == ValueInt }
func (v Value) IsFloat() bool  { return v.Type == ValueFloat }
func (v Value) IsString() bool { return v.Type == ValueString }
func (v Value) IsList() bool   { return v.Type == ValueList }
func (v Value) IsQuot() bool   { return v.Type == ValueQuot }
func (v Value) IsChar() bool   { return v.Type == ValueChar }
func (v Value) IsNumber() bool { return v.Type == ValueInt || v.Type == ValueFloat }

// Type conversion methods.

func (v Value) AsBool() bool {
	if v.Type == ValueBool {
		return v.Data.(bool)
	}
	return false
}

func (v Value) AsInt() int64 {
	if v.Type == ValueInt {
		return v.Data.(int64)
	}
	return 0
}

// AsFloat returns the numeric value as a float, promoting integers.
func (v Value) AsFloat() float64 {
	if v.Type == ValueFloat {
		return v.Data.(float64)
	}
	if v.Type == ValueInt {
		return float64(v.Data.(int64))
	}
	return 0.0
}

func (v Value) AsString() string {
	if v.Type == ValueString {
		return v.Data.(string)
	}
	return ""
}

// AsList returns the underlying list instance if the value is a list.
func (v Value) AsList() *ListInstance {
	if v.Type == ValueList {
		if list, ok := v.Data.(*ListInstance); ok {
			return list
		}
	}
	return nil
}

// AsQuot returns the referenced code object if the value is a quotation.
func (v Value) AsQuot() *Chunk {
	if v.Type == ValueQuot {
		if chunk, ok := v.Data.(*Chunk); ok {
			return chunk
		}
	}
	return nil
}

func (v Value) AsChar() rune {
	if v.Type == ValueChar {
		return v.Data.(rune)
	}
	return 0
}

// Equal reports structural, type-respecting equality. Integer and Float
// compare numerically with the integer promoted; strings compare by content;
// lists compare element-wise; quotations compare by identity only; mixed
// unrelated types compare unequal. Float equality is bit-pattern equality
// (so +0.0 and -0.0 are unequal) except that NaN never equals NaN.
func (v Value) Equal(other Value) bool {
	if v.IsNumber() && other.IsNumber() {
		if v.Type == ValueInt && other.Type == ValueInt {
			return v.AsInt() == other.AsInt()
		}
		a, b := v.AsFloat(), other.AsFloat()
		if math.IsNaN(a) || math.IsNaN(b) {
			return false
		}
		return math.Float64bits(a) == math.Float64bits(b)
	}
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValueNil:
		return true
	case ValueBool:
		return v.AsBool() == other.AsBool()
	case ValueString:
		return v.AsString() == other.AsString()
	case ValueChar:
		return v.AsChar() == other.AsChar()
	case ValueList:
		a, b := v.AsList(), other.AsList()
		if a.Length() != b.Length() {
			return false
		}
		for i := 0; i < a.Length(); i++ {
			ae, _ := a.Get(i)
			be, _ := b.Get(i)
			if !ae.Equal(be) {
				return false
			}
		}
		return true
	case ValueQuot:
		return v.AsQuot() == other.AsQuot()
	default:
		return false
	}
}

// String returns the debug representation of the value. Strings are quoted;
// use Display for program-facing output.
func (v Value) String() string {
	switch v.Type {
	case ValueNil:
		return "nil"
	case ValueBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValueInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case ValueFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case ValueString:
		return strconv.Quote(v.AsString())
	case ValueChar:
		return string(v.AsChar())
	case ValueList:
		if list := v.AsList(); list != nil {
			return list.String()
		}
		return "{ }"
	case ValueQuot:
		if chunk := v.AsQuot(); chunk != nil && chunk.Name != "" {
			return fmt.Sprintf("<quotation %s>", chunk.Name)
		}
		return "<quotation>"
	default:
		return fmt.Sprintf("<%s>", v.Type)
	}
}

// Display returns the program-facing rendering used by print and to-string.
// It differs from String only for strings, which render raw at the top
// level; characters render raw in both. Inside lists, strings stay quoted so
// that { "a b" } and { "a" "b" } remain distinguishable.
func (v Value) Display() string {
	switch v.Type {
	case ValueString:
		return v.AsString()
	case ValueChar:
		return string(v.AsChar())
	default:
		return v.String()
	}
}

// ListInstance represents an immutable ordered sequence of values with
// shared ownership. Element access is O(1); structural operations produce
// new lists and may share the underlying storage.
type ListInstance struct {
	elements []Value
}

// NewListInstance creates a list from the provided elements.
// The slice is copied so later mutation by the caller cannot leak in.
func NewListInstance(elements []Value) *ListInstance {
	if len(elements) == 0 {
		return &ListInstance{}
	}
	buf := make([]Value, len(elements))
	copy(buf, elements)
	return &ListInstance{elements: buf}
}

// Length returns the number of elements in the list.
func (l *ListInstance) Length() int {
	if l == nil {
		return 0
	}
	return len(l.elements)
}

// Get returns the element at the specified index.
// The bool return reports whether the index was within bounds.
func (l *ListInstance) Get(index int) (Value, bool) {
	if l == nil || index < 0 || index >= len(l.elements) {
		return NilValue(), false
	}
	return l.elements[index], true
}

// Head returns the first element.
func (l *ListInstance) Head() (Value, bool) {
	return l.Get(0)
}

// Tail returns a list of all elements but the first. The storage is shared
// with the receiver, which is safe because lists are immutable.
func (l *ListInstance) Tail() (*ListInstance, bool) {
	if l.Length() == 0 {
		return nil, false
	}
	return &ListInstance{elements: l.elements[1:]}, true
}

// Append returns a new list with the value appended.
func (l *ListInstance) Append(v Value) *ListInstance {
	buf := make([]Value, l.Length(), l.Length()+1)
	copy(buf, l.elements)
	return &ListInstance{elements: append(buf, v)}
}

// Concat returns a new list holding the receiver's elements followed by the
// other list's elements.
func (l *ListInstance) Concat(other *ListInstance) *ListInstance {
	buf := make([]Value, 0, l.Length()+other.Length())
	buf = append(buf, l.elements...)
	buf = append(buf, other.elements...)
	return &ListInstance{elements: buf}
}

// String formats the list the way Ember renders it: { e1 e2 ... }.
func (l *ListInstance) String() string {
	if l.Length() == 0 {
		return "{ }"
	}
	var sb strings.Builder
	sb.WriteString("{ ")
	for i, elem := range l.elements {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(elem.String())
	}
	sb.WriteString(" }")
	return sb.String()
}
