package bytecode

import "math"

// opSymbol maps arithmetic and comparison opcodes to the source-level word,
// for error messages.
func opSymbol(op OpCode) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpNeg:
		return "neg"
	case OpAbs:
		return "abs"
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	}
	return OpCodeNames[op]
}

// binaryNumericOp implements + - * / %. Two integers stay integral and wrap
// on overflow; mixing with a float promotes both operands to float. Integer
// division truncates toward zero and rejects a zero divisor; the remainder
// sign follows the dividend.
func (vm *VM) binaryNumericOp(op OpCode) error {
	name := opSymbol(op)
	b, a, err := vm.pop2(name)
	if err != nil {
		return err
	}
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError(TypeError, "%s expects numeric operands, got %s and %s", name, a.Type, b.Type)
	}

	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case OpAdd:
			vm.push(IntValue(x + y))
		case OpSub:
			vm.push(IntValue(x - y))
		case OpMul:
			vm.push(IntValue(x * y))
		case OpDiv:
			if y == 0 {
				return vm.runtimeError(DivisionByZero, "integer division by zero")
			}
			vm.push(IntValue(x / y))
		case OpMod:
			if y == 0 {
				return vm.runtimeError(DivisionByZero, "integer modulo by zero")
			}
			vm.push(IntValue(x % y))
		}
		return nil
	}

	x, y := a.AsFloat(), b.AsFloat()
	switch op {
	case OpAdd:
		vm.push(FloatValue(x + y))
	case OpSub:
		vm.push(FloatValue(x - y))
	case OpMul:
		vm.push(FloatValue(x * y))
	case OpDiv:
		vm.push(FloatValue(x / y))
	case OpMod:
		vm.push(FloatValue(math.Mod(x, y)))
	}
	return nil
}

// unaryNumericOp implements neg and abs.
func (vm *VM) unaryNumericOp(op OpCode) error {
	name := opSymbol(op)
	v, err := vm.pop(name)
	if err != nil {
		return err
	}
	switch {
	case v.IsInt():
		x := v.AsInt()
		if op == OpAbs && x < 0 {
			x = -x
		} else if op == OpNeg {
			x = -x
		}
		vm.push(IntValue(x))
	case v.IsFloat():
		x := v.AsFloat()
		if op == OpAbs {
			x = math.Abs(x)
		} else {
			x = -x
		}
		vm.push(FloatValue(x))
	default:
		return vm.runtimeError(TypeError, "%s expects a numeric operand, got %s", name, v.Type)
	}
	return nil
}

// compareOp implements the ordering comparisons. Numbers compare after
// promotion, strings lexicographically, characters by code point; any other
// pairing is a TypeError.
func (vm *VM) compareOp(op OpCode) error {
	name := opSymbol(op)
	b, a, err := vm.pop2(name)
	if err != nil {
		return err
	}

	var cmp int
	switch {
	case a.IsInt() && b.IsInt():
		x, y := a.AsInt(), b.AsInt()
		cmp = compareOrdered(x, y)
	case a.IsNumber() && b.IsNumber():
		x, y := a.AsFloat(), b.AsFloat()
		if math.IsNaN(x) || math.IsNaN(y) {
			vm.push(BoolValue(false))
			return nil
		}
		cmp = compareOrdered(x, y)
	case a.IsString() && b.IsString():
		cmp = compareOrdered(a.AsString(), b.AsString())
	case a.IsChar() && b.IsChar():
		cmp = compareOrdered(a.AsChar(), b.AsChar())
	default:
		return vm.runtimeError(TypeError, "%s cannot compare %s with %s", name, a.Type, b.Type)
	}

	switch op {
	case OpLt:
		vm.push(BoolValue(cmp < 0))
	case OpGt:
		vm.push(BoolValue(cmp > 0))
	case OpLe:
		vm.push(BoolValue(cmp <= 0))
	case OpGe:
		vm.push(BoolValue(cmp >= 0))
	}
	return nil
}

// compareOrdered returns -1, 0 or 1.
func compareOrdered[T int64 | float64 | string | rune](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// binaryBoolOp implements and / or. Operands must be booleans; there is no
// Boolean/Integer coercion.
func (vm *VM) binaryBoolOp(op OpCode) error {
	name := opSymbol(op)
	b, a, err := vm.pop2(name)
	if err != nil {
		return err
	}
	if !a.IsBool() || !b.IsBool() {
		return vm.runtimeError(TypeError, "%s expects Boolean operands, got %s and %s", name, a.Type, b.Type)
	}
	if op == OpAnd {
		vm.push(BoolValue(a.AsBool() && b.AsBool()))
	} else {
		vm.push(BoolValue(a.AsBool() || b.AsBool()))
	}
	return nil
}
