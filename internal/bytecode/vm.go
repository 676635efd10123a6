package bytecode

import (
	"fmt"
	"io"

	"github.com/sger/ember/internal/lexer"
)

// Default VM configuration constants.
const (
	defaultStackCapacity = 256
	defaultMaxFrames     = 1024

	// stackSnapshotDepth bounds the stack excerpt attached to runtime errors.
	stackSnapshotDepth = 5
)

// callFrame is one entry of the call-frame stack: the executing code object
// and its instruction pointer. Locals hold the hidden counters of lowered
// times loops.
type callFrame struct {
	chunk  *Chunk
	locals []Value
	ip     int
}

// VM executes bytecode programs produced by the compiler. A VM owns its
// value stack and call-frame stack exclusively; the program it executes is
// immutable and may be shared.
type VM struct {
	program   *Program
	output    io.Writer
	stack     []Value
	frames    []callFrame
	maxFrames int
}

// Option configures a VM.
type Option func(*VM)

// WithOutput sets the writer that receives print output.
// Defaults to io.Discard when nil.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) {
		vm.output = w
	}
}

// WithMaxFrames overrides the call-frame stack depth limit.
func WithMaxFrames(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxFrames = n
		}
	}
}

// NewVM creates a new VM with default configuration.
func NewVM(opts ...Option) *VM {
	vm := &VM{
		stack:     make([]Value, 0, defaultStackCapacity),
		frames:    make([]callFrame, 0, 16),
		output:    io.Discard,
		maxFrames: defaultMaxFrames,
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.output == nil {
		vm.output = io.Discard
	}
	return vm
}

// Stack returns a copy of the current value stack, bottom first.
// Primarily for tests and error reporting.
func (vm *VM) Stack() []Value {
	out := make([]Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// Run executes the program's main code object to completion.
func (vm *VM) Run(program *Program) error {
	if program == nil || program.Main == nil {
		return fmt.Errorf("vm: nil program")
	}
	if err := program.Validate(); err != nil {
		return fmt.Errorf("vm: invalid program: %w", err)
	}

	vm.program = program
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]

	if err := vm.pushFrame(program.Main); err != nil {
		return err
	}
	return vm.runLoop(0)
}

// runLoop is the dispatch loop: fetch the opcode at ip, advance ip,
// dispatch. It executes until the frame stack shrinks back to baseDepth,
// which lets built-ins that accept quotations re-enter it with a synthetic
// frame and resume when that frame returns.
func (vm *VM) runLoop(baseDepth int) error {
	for len(vm.frames) > baseDepth {
		frame := &vm.frames[len(vm.frames)-1]

		if frame.ip >= len(frame.chunk.Code) {
			// Reaching the end of instructions is an implicit return.
			vm.frames = vm.frames[:len(vm.frames)-1]
			continue
		}

		inst := frame.chunk.Code[frame.ip]
		frame.ip++

		if err := vm.exec(inst, frame); err != nil {
			return err
		}
	}
	return nil
}

// pushFrame enters a code object, enforcing the frame depth limit.
func (vm *VM) pushFrame(chunk *Chunk) error {
	if len(vm.frames) >= vm.maxFrames {
		return vm.runtimeError(CallStackOverflow, "call depth exceeds %d frames", vm.maxFrames)
	}
	var locals []Value
	if chunk.LocalCount > 0 {
		locals = make([]Value, chunk.LocalCount)
	}
	vm.frames = append(vm.frames, callFrame{chunk: chunk, locals: locals})
	return nil
}

// callQuotation runs a quotation to completion on a synthetic frame and
// returns once it has popped.
func (vm *VM) callQuotation(chunk *Chunk) error {
	base := len(vm.frames)
	if err := vm.pushFrame(chunk); err != nil {
		return err
	}
	return vm.runLoop(base)
}

// errorPos returns the source position of the instruction currently being
// executed by the topmost frame.
func (vm *VM) errorPos() lexer.Position {
	if len(vm.frames) == 0 {
		return lexer.Position{}
	}
	frame := &vm.frames[len(vm.frames)-1]
	idx := frame.ip - 1
	if idx < 0 {
		idx = 0
	}
	return frame.chunk.PosAt(idx)
}

// runtimeError builds a fatal RuntimeError annotated with the current
// instruction's source position and a snapshot of the top of the stack.
func (vm *VM) runtimeError(kind RuntimeErrorKind, format string, args ...any) error {
	snapshot := vm.stack
	if len(snapshot) > stackSnapshotDepth {
		snapshot = snapshot[len(snapshot)-stackSnapshotDepth:]
	}
	top := make([]Value, len(snapshot))
	copy(top, snapshot)
	return &RuntimeError{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Pos:      vm.errorPos(),
		StackTop: top,
	}
}

// exec dispatches a single instruction.
func (vm *VM) exec(inst Instruction, frame *callFrame) error {
	switch inst.OpCode() {
	case OpPush:
		vm.push(frame.chunk.GetConstant(int(inst.B())))
	case OpPushQuot:
		vm.push(frame.chunk.GetConstant(int(inst.B())))

	case OpDrop:
		_, err := vm.pop("drop")
		return err
	case OpDup:
		v, err := vm.peek("dup")
		if err != nil {
			return err
		}
		vm.push(v)
	case OpSwap:
		b, a, err := vm.pop2("swap")
		if err != nil {
			return err
		}
		vm.push(b)
		vm.push(a)
	case OpOver:
		if len(vm.stack) < 2 {
			return vm.runtimeError(StackUnderflow, "over requires 2 values, have %d", len(vm.stack))
		}
		vm.push(vm.stack[len(vm.stack)-2])
	case OpRot:
		if len(vm.stack) < 3 {
			return vm.runtimeError(StackUnderflow, "rot requires 3 values, have %d", len(vm.stack))
		}
		n := len(vm.stack)
		a, b, c := vm.stack[n-3], vm.stack[n-2], vm.stack[n-1]
		vm.stack[n-3], vm.stack[n-2], vm.stack[n-1] = b, c, a

	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return vm.binaryNumericOp(inst.OpCode())
	case OpNeg, OpAbs:
		return vm.unaryNumericOp(inst.OpCode())

	case OpEq:
		b, a, err := vm.pop2("=")
		if err != nil {
			return err
		}
		vm.push(BoolValue(a.Equal(b)))
	case OpNe:
		b, a, err := vm.pop2("!=")
		if err != nil {
			return err
		}
		vm.push(BoolValue(!a.Equal(b)))
	case OpLt, OpGt, OpLe, OpGe:
		return vm.compareOp(inst.OpCode())

	case OpAnd, OpOr:
		return vm.binaryBoolOp(inst.OpCode())
	case OpNot:
		v, err := vm.popBool("not")
		if err != nil {
			return err
		}
		vm.push(BoolValue(!v))

	case OpPrint:
		v, err := vm.pop("print")
		if err != nil {
			return err
		}
		fmt.Fprintln(vm.output, v.Display())
	case OpDot:
		v, err := vm.pop(".")
		if err != nil {
			return err
		}
		fmt.Fprint(vm.output, v.Display())

	case OpCallWord:
		name := frame.chunk.GetConstant(int(inst.B())).AsString()
		return vm.callWord(name)
	case OpJump:
		frame.ip += int(inst.SignedB())
	case OpJumpFalse:
		cond, err := vm.popBool("conditional")
		if err != nil {
			return err
		}
		if !cond {
			frame.ip += int(inst.SignedB())
		}
	case OpReturn:
		vm.frames = vm.frames[:len(vm.frames)-1]
	case OpCall:
		quot, err := vm.popQuot("call")
		if err != nil {
			return err
		}
		return vm.pushFrame(quot)

	case OpLoadLocal:
		vm.push(frame.locals[inst.B()])
	case OpStoreLocal:
		v, err := vm.pop("loop counter")
		if err != nil {
			return err
		}
		frame.locals[inst.B()] = v

	case OpConcat, OpLen, OpHead, OpTail, OpNth, OpAppend:
		return vm.listOp(inst.OpCode())
	case OpMap, OpFilter, OpFold, OpEach:
		return vm.listCombinator(inst.OpCode())
	case OpChars, OpUpper, OpLower, OpSplit, OpJoin, OpToString:
		return vm.stringOp(inst.OpCode())
	case OpDip, OpKeep, OpBi, OpTri, OpIf, OpWhen, OpTimes:
		return vm.combinator(inst.OpCode())

	default:
		return vm.runtimeError(TypeError, "unknown opcode %d", inst.OpCode())
	}
	return nil
}

// callWord resolves a CALL_WORD operand. The compiler links every call it
// can, so the built-in fallback only matters for hand-built or deserialized
// programs whose tables were tampered with.
func (vm *VM) callWord(name string) error {
	if chunk, ok := vm.program.Lookup(name); ok {
		return vm.pushFrame(chunk)
	}
	if op, ok := BuiltinOp(name); ok {
		frame := &vm.frames[len(vm.frames)-1]
		return vm.exec(MakeSimpleInstruction(op), frame)
	}
	return vm.runtimeError(UndefinedWord, "word %q is not defined", name)
}
