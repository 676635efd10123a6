package bytecode

import (
	"strings"
	"unicode/utf8"
)

// listOp implements the non-quotation list built-ins.
func (vm *VM) listOp(op OpCode) error {
	switch op {
	case OpConcat:
		b, a, err := vm.pop2("concat")
		if err != nil {
			return err
		}
		switch {
		case a.IsString() && b.IsString():
			vm.push(StringValue(a.AsString() + b.AsString()))
		case a.IsList() && b.IsList():
			vm.push(ListValue(a.AsList().Concat(b.AsList())))
		default:
			return vm.runtimeError(TypeError, "concat expects two Lists or two Strings, got %s and %s", a.Type, b.Type)
		}

	case OpLen:
		v, err := vm.pop("len")
		if err != nil {
			return err
		}
		switch {
		case v.IsString():
			vm.push(IntValue(int64(utf8.RuneCountInString(v.AsString()))))
		case v.IsList():
			vm.push(IntValue(int64(v.AsList().Length())))
		default:
			return vm.runtimeError(TypeError, "len expects a List or String, got %s", v.Type)
		}

	case OpHead:
		list, err := vm.popList("head")
		if err != nil {
			return err
		}
		head, ok := list.Head()
		if !ok {
			return vm.runtimeError(EmptyListHeadOrTail, "head of empty list")
		}
		vm.push(head)

	case OpTail:
		list, err := vm.popList("tail")
		if err != nil {
			return err
		}
		tail, ok := list.Tail()
		if !ok {
			return vm.runtimeError(EmptyListHeadOrTail, "tail of empty list")
		}
		vm.push(ListValue(tail))

	case OpNth:
		index, err := vm.popInt("nth")
		if err != nil {
			return err
		}
		list, err := vm.popList("nth")
		if err != nil {
			return err
		}
		elem, ok := list.Get(int(index))
		if !ok {
			return vm.runtimeError(IndexOutOfBounds, "index %d out of range for list of length %d", index, list.Length())
		}
		vm.push(elem)

	case OpAppend:
		elem, err := vm.pop("append")
		if err != nil {
			return err
		}
		list, err := vm.popList("append")
		if err != nil {
			return err
		}
		vm.push(ListValue(list.Append(elem)))
	}
	return nil
}

// listCombinator implements map, filter, fold and each. Each application
// re-enters the dispatch loop on a synthetic frame and resumes here when the
// quotation returns.
func (vm *VM) listCombinator(op OpCode) error {
	name := OpCodeNames[op]
	quot, err := vm.popQuot(strings.ToLower(name))
	if err != nil {
		return err
	}

	switch op {
	case OpMap:
		list, err := vm.popList("map")
		if err != nil {
			return err
		}
		results := make([]Value, 0, list.Length())
		for i := 0; i < list.Length(); i++ {
			elem, _ := list.Get(i)
			vm.push(elem)
			if err := vm.callQuotation(quot); err != nil {
				return err
			}
			mapped, err := vm.pop("map result")
			if err != nil {
				return err
			}
			results = append(results, mapped)
		}
		vm.push(ListValue(NewListInstance(results)))

	case OpFilter:
		list, err := vm.popList("filter")
		if err != nil {
			return err
		}
		var kept []Value
		for i := 0; i < list.Length(); i++ {
			elem, _ := list.Get(i)
			vm.push(elem)
			if err := vm.callQuotation(quot); err != nil {
				return err
			}
			keep, err := vm.popBool("filter predicate")
			if err != nil {
				return err
			}
			if keep {
				kept = append(kept, elem)
			}
		}
		vm.push(ListValue(NewListInstance(kept)))

	case OpFold:
		acc, err := vm.pop("fold")
		if err != nil {
			return err
		}
		list, err := vm.popList("fold")
		if err != nil {
			return err
		}
		for i := 0; i < list.Length(); i++ {
			elem, _ := list.Get(i)
			vm.push(acc)
			vm.push(elem)
			if err := vm.callQuotation(quot); err != nil {
				return err
			}
			acc, err = vm.pop("fold accumulator")
			if err != nil {
				return err
			}
		}
		vm.push(acc)

	case OpEach:
		list, err := vm.popList("each")
		if err != nil {
			return err
		}
		for i := 0; i < list.Length(); i++ {
			elem, _ := list.Get(i)
			vm.push(elem)
			if err := vm.callQuotation(quot); err != nil {
				return err
			}
		}
	}
	return nil
}

// stringOp implements the string built-ins.
func (vm *VM) stringOp(op OpCode) error {
	switch op {
	case OpChars:
		s, err := vm.popString("chars")
		if err != nil {
			return err
		}
		runes := []rune(s)
		chars := make([]Value, len(runes))
		for i, r := range runes {
			chars[i] = CharValue(r)
		}
		vm.push(ListValue(NewListInstance(chars)))

	case OpUpper:
		s, err := vm.popString("upper")
		if err != nil {
			return err
		}
		vm.push(StringValue(strings.ToUpper(s)))

	case OpLower:
		s, err := vm.popString("lower")
		if err != nil {
			return err
		}
		vm.push(StringValue(strings.ToLower(s)))

	case OpSplit:
		sep, err := vm.popString("split")
		if err != nil {
			return err
		}
		s, err := vm.popString("split")
		if err != nil {
			return err
		}
		parts := strings.Split(s, sep)
		elems := make([]Value, len(parts))
		for i, part := range parts {
			elems[i] = StringValue(part)
		}
		vm.push(ListValue(NewListInstance(elems)))

	case OpJoin:
		sep, err := vm.popString("join")
		if err != nil {
			return err
		}
		list, err := vm.popList("join")
		if err != nil {
			return err
		}
		parts := make([]string, list.Length())
		for i := 0; i < list.Length(); i++ {
			elem, _ := list.Get(i)
			switch {
			case elem.IsString():
				parts[i] = elem.AsString()
			case elem.IsChar():
				parts[i] = string(elem.AsChar())
			default:
				return vm.runtimeError(TypeError, "join expects a List of Strings, element %d is %s", i, elem.Type)
			}
		}
		vm.push(StringValue(strings.Join(parts, sep)))

	case OpToString:
		v, err := vm.pop("to-string")
		if err != nil {
			return err
		}
		vm.push(StringValue(v.Display()))
	}
	return nil
}

// combinator implements the quotation combinators, including the runtime
// forms of if, when and times used when quotations arrive dynamically.
func (vm *VM) combinator(op OpCode) error {
	switch op {
	case OpDip:
		quot, err := vm.popQuot("dip")
		if err != nil {
			return err
		}
		saved, err := vm.pop("dip")
		if err != nil {
			return err
		}
		if err := vm.callQuotation(quot); err != nil {
			return err
		}
		vm.push(saved)

	case OpKeep:
		quot, err := vm.popQuot("keep")
		if err != nil {
			return err
		}
		saved, err := vm.peek("keep")
		if err != nil {
			return err
		}
		if err := vm.callQuotation(quot); err != nil {
			return err
		}
		vm.push(saved)

	case OpBi:
		q2, q1, err := vm.popQuotPair("bi")
		if err != nil {
			return err
		}
		x, err := vm.pop("bi")
		if err != nil {
			return err
		}
		for _, quot := range []*Chunk{q1, q2} {
			vm.push(x)
			if err := vm.callQuotation(quot); err != nil {
				return err
			}
		}

	case OpTri:
		q3, err := vm.popQuot("tri")
		if err != nil {
			return err
		}
		q2, q1, err := vm.popQuotPair("tri")
		if err != nil {
			return err
		}
		x, err := vm.pop("tri")
		if err != nil {
			return err
		}
		for _, quot := range []*Chunk{q1, q2, q3} {
			vm.push(x)
			if err := vm.callQuotation(quot); err != nil {
				return err
			}
		}

	case OpIf:
		elseQ, thenQ, err := vm.popQuotPair("if")
		if err != nil {
			return err
		}
		cond, err := vm.popBool("if")
		if err != nil {
			return err
		}
		if cond {
			return vm.pushFrame(thenQ)
		}
		return vm.pushFrame(elseQ)

	case OpWhen:
		quot, err := vm.popQuot("when")
		if err != nil {
			return err
		}
		cond, err := vm.popBool("when")
		if err != nil {
			return err
		}
		if cond {
			return vm.pushFrame(quot)
		}

	case OpTimes:
		quot, err := vm.popQuot("times")
		if err != nil {
			return err
		}
		count, err := vm.popInt("times")
		if err != nil {
			return err
		}
		for i := int64(0); i < count; i++ {
			if err := vm.callQuotation(quot); err != nil {
				return err
			}
		}
	}
	return nil
}

// popQuotPair pops two quotations, returning them top-first.
func (vm *VM) popQuotPair(op string) (*Chunk, *Chunk, error) {
	top, err := vm.popQuot(op)
	if err != nil {
		return nil, nil, err
	}
	under, err := vm.popQuot(op)
	if err != nil {
		return nil, nil, err
	}
	return top, under, nil
}
