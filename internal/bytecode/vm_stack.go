package bytecode

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

// pop removes and returns the top of the stack. The op name is used in the
// StackUnderflow message.
func (vm *VM) pop(op string) (Value, error) {
	if len(vm.stack) == 0 {
		return NilValue(), vm.runtimeError(StackUnderflow, "%s requires a value, stack is empty", op)
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

// pop2 removes the two topmost values, returning them top-first.
func (vm *VM) pop2(op string) (Value, Value, error) {
	if len(vm.stack) < 2 {
		return NilValue(), NilValue(), vm.runtimeError(StackUnderflow, "%s requires 2 values, have %d", op, len(vm.stack))
	}
	n := len(vm.stack)
	top, under := vm.stack[n-1], vm.stack[n-2]
	vm.stack = vm.stack[:n-2]
	return top, under, nil
}

// peek returns the top of the stack without removing it.
func (vm *VM) peek(op string) (Value, error) {
	if len(vm.stack) == 0 {
		return NilValue(), vm.runtimeError(StackUnderflow, "%s requires a value, stack is empty", op)
	}
	return vm.stack[len(vm.stack)-1], nil
}

// popBool pops a boolean, failing with a TypeError otherwise.
func (vm *VM) popBool(op string) (bool, error) {
	v, err := vm.pop(op)
	if err != nil {
		return false, err
	}
	if !v.IsBool() {
		return false, vm.runtimeError(TypeError, "%s expects a Boolean, got %s", op, v.Type)
	}
	return v.AsBool(), nil
}

// popInt pops an integer, failing with a TypeError otherwise.
func (vm *VM) popInt(op string) (int64, error) {
	v, err := vm.pop(op)
	if err != nil {
		return 0, err
	}
	if !v.IsInt() {
		return 0, vm.runtimeError(TypeError, "%s expects an Integer, got %s", op, v.Type)
	}
	return v.AsInt(), nil
}

// popString pops a string, failing with a TypeError otherwise.
func (vm *VM) popString(op string) (string, error) {
	v, err := vm.pop(op)
	if err != nil {
		return "", err
	}
	if !v.IsString() {
		return "", vm.runtimeError(TypeError, "%s expects a String, got %s", op, v.Type)
	}
	return v.AsString(), nil
}

// popList pops a list, failing with a TypeError otherwise.
func (vm *VM) popList(op string) (*ListInstance, error) {
	v, err := vm.pop(op)
	if err != nil {
		return nil, err
	}
	if !v.IsList() {
		return nil, vm.runtimeError(TypeError, "%s expects a List, got %s", op, v.Type)
	}
	return v.AsList(), nil
}

// popQuot pops a quotation, failing with a TypeError otherwise.
func (vm *VM) popQuot(op string) (*Chunk, error) {
	v, err := vm.pop(op)
	if err != nil {
		return nil, err
	}
	if !v.IsQuot() {
		return nil, vm.runtimeError(TypeError, "%s expects a Quotation, got %s", op, v.Type)
	}
	return v.AsQuot(), nil
}
