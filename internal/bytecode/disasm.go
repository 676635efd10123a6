package bytecode

import (
	"fmt"
	"io"
	"sort"

	"github.com/samber/lo"
)

// Disassembler renders human-readable bytecode listings for debugging.
type Disassembler struct {
	writer io.Writer
}

// NewDisassembler creates a disassembler writing to the given writer.
func NewDisassembler(writer io.Writer) *Disassembler {
	return &Disassembler{writer: writer}
}

// DisassembleProgram prints the main chunk followed by every word chunk in
// sorted qualified-name order, recursing into embedded quotations.
func (d *Disassembler) DisassembleProgram(program *Program) {
	d.DisassembleChunk(program.Main)
	names := lo.Keys(program.Words)
	sort.Strings(names)
	for _, name := range names {
		d.DisassembleChunk(program.Words[name])
	}
}

// DisassembleChunk prints a complete disassembly of one chunk and of the
// quotation chunks embedded in its constant pool.
func (d *Disassembler) DisassembleChunk(chunk *Chunk) {
	fmt.Fprintf(d.writer, "== %s ==\n", chunk.Name)
	fmt.Fprintf(d.writer, "Instructions: %d, Constants: %d, Locals: %d\n\n",
		len(chunk.Code), len(chunk.Constants), chunk.LocalCount)

	if len(chunk.Constants) > 0 {
		fmt.Fprintf(d.writer, "Constants Pool:\n")
		for i, constant := range chunk.Constants {
			fmt.Fprintf(d.writer, "  [%04d] %s\n", i, constant.String())
		}
		fmt.Fprintf(d.writer, "\n")
	}

	fmt.Fprintf(d.writer, "Bytecode:\n")
	for offset := 0; offset < len(chunk.Code); offset++ {
		d.disassembleInstruction(chunk, offset)
	}
	fmt.Fprintf(d.writer, "\n")

	for _, constant := range chunk.Constants {
		if inner := constant.AsQuot(); inner != nil {
			d.DisassembleChunk(inner)
		}
	}
}

// disassembleInstruction prints a single instruction at the given offset.
func (d *Disassembler) disassembleInstruction(chunk *Chunk, offset int) {
	inst := chunk.Code[offset]

	// Offset and source line, run-length style: repeat lines print a pipe.
	pos := chunk.PosAt(offset)
	if offset > 0 && pos.Line == chunk.PosAt(offset-1).Line {
		fmt.Fprintf(d.writer, "%04d    | ", offset)
	} else {
		fmt.Fprintf(d.writer, "%04d %4d ", offset, pos.Line)
	}

	switch inst.OpCode() {
	case OpPush, OpPushQuot, OpCallWord:
		idx := int(inst.B())
		fmt.Fprintf(d.writer, "%-12s [%d] %s\n", inst.String(), idx, chunk.GetConstant(idx).String())
	case OpJump, OpJumpFalse:
		target := offset + 1 + int(inst.SignedB())
		fmt.Fprintf(d.writer, "%-12s %+d -> %04d\n", inst.String(), inst.SignedB(), target)
	case OpLoadLocal, OpStoreLocal:
		fmt.Fprintf(d.writer, "%-12s slot %d\n", inst.String(), inst.B())
	default:
		fmt.Fprintf(d.writer, "%s\n", inst.String())
	}
}
