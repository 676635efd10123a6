package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// Bytecode file format (.ebc) specification
// ==========================================
//
// Header (8 bytes):
//   - Magic number: "EBC\x00" (4 bytes)
//   - Version major: uint8 (1 byte)
//   - Version minor: uint8 (1 byte)
//   - Version patch: uint8 (1 byte)
//   - Reserved: uint8 (1 byte) - for future use
//
// Body:
//   - Word count: uint32
//   - For each word (sorted by name): qualified name + chunk
//   - Main chunk
//
// Strings are length-prefixed (uint32 + bytes); integers are little-endian.
// Quotation constants embed their chunk recursively. Readers must reject a
// mismatched magic number or an incompatible version.

const (
	// MagicNumber identifies Ember bytecode files.
	MagicNumber = "EBC\x00"

	// Version of the bytecode format.
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// SerializerVersion represents a bytecode format version.
type SerializerVersion struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// String returns a string representation of the version.
func (v SerializerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsCompatible checks if this version can read bytecode of another version.
func (v SerializerVersion) IsCompatible(other SerializerVersion) bool {
	if v.Major != other.Major {
		return false
	}
	// Can read older minor versions, but not newer ones.
	return other.Minor <= v.Minor
}

// CurrentVersion returns the current serializer version.
func CurrentVersion() SerializerVersion {
	return SerializerVersion{Major: VersionMajor, Minor: VersionMinor, Patch: VersionPatch}
}

// Serializer handles bytecode serialization and deserialization.
type Serializer struct {
	version SerializerVersion
}

// NewSerializer creates a new serializer with the current version.
func NewSerializer() *Serializer {
	return &Serializer{version: CurrentVersion()}
}

// SerializeProgram writes a Program to its binary format.
func (s *Serializer) SerializeProgram(program *Program) ([]byte, error) {
	if program == nil || program.Main == nil {
		return nil, fmt.Errorf("cannot serialize nil program")
	}

	buf := new(bytes.Buffer)
	if err := s.writeHeader(buf); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	names := make([]string, 0, len(program.Words))
	for name := range program.Words {
		names = append(names, name)
	}
	sort.Strings(names)

	if err := s.writeUint32(buf, uint32(len(names))); err != nil {
		return nil, fmt.Errorf("failed to write word count: %w", err)
	}
	for _, name := range names {
		if err := s.writeString(buf, name); err != nil {
			return nil, fmt.Errorf("failed to write word name %q: %w", name, err)
		}
		if err := s.writeChunk(buf, program.Words[name]); err != nil {
			return nil, fmt.Errorf("failed to write word %q: %w", name, err)
		}
	}

	if err := s.writeChunk(buf, program.Main); err != nil {
		return nil, fmt.Errorf("failed to write main chunk: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeProgram reads a Program from its binary format.
func (s *Serializer) DeserializeProgram(data []byte) (*Program, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("bytecode too short: expected at least 8 bytes, got %d", len(data))
	}

	buf := bytes.NewReader(data)
	version, err := s.readHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !s.version.IsCompatible(version) {
		return nil, fmt.Errorf("incompatible bytecode version: have %s, bytecode is %s", s.version, version)
	}

	count, err := s.readUint32(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read word count: %w", err)
	}
	words := make(map[string]*Chunk, count)
	for i := uint32(0); i < count; i++ {
		name, err := s.readString(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read word name: %w", err)
		}
		chunk, err := s.readChunk(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read word %q: %w", name, err)
		}
		words[name] = chunk
	}

	main, err := s.readChunk(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read main chunk: %w", err)
	}

	return &Program{Words: words, Main: main}, nil
}

// ============================================================================
// Header serialization
// ============================================================================

func (s *Serializer) writeHeader(w io.Writer) error {
	if _, err := w.Write([]byte(MagicNumber)); err != nil {
		return err
	}
	for _, b := range []uint8{s.version.Major, s.version.Minor, s.version.Patch, 0} {
		if err := binary.Write(w, binary.LittleEndian, b); err != nil {
			return err
		}
	}
	return nil
}

func (s *Serializer) readHeader(r io.Reader) (SerializerVersion, error) {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return SerializerVersion{}, fmt.Errorf("failed to read magic number: %w", err)
	}
	if string(magic) != MagicNumber {
		return SerializerVersion{}, fmt.Errorf("invalid magic number: expected %q, got %q", MagicNumber, string(magic))
	}

	var version SerializerVersion
	var reserved uint8
	for _, dst := range []*uint8{&version.Major, &version.Minor, &version.Patch, &reserved} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return SerializerVersion{}, fmt.Errorf("failed to read version: %w", err)
		}
	}
	return version, nil
}

// ============================================================================
// Chunk serialization
// ============================================================================

func (s *Serializer) writeChunk(w io.Writer, chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("cannot serialize nil chunk")
	}
	if err := s.writeString(w, chunk.Name); err != nil {
		return err
	}
	if err := s.writeString(w, chunk.File); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(chunk.LocalCount)); err != nil {
		return err
	}

	if err := s.writeUint32(w, uint32(len(chunk.Code))); err != nil {
		return err
	}
	for _, inst := range chunk.Code {
		if err := binary.Write(w, binary.LittleEndian, uint32(inst)); err != nil {
			return err
		}
	}

	if err := s.writeUint32(w, uint32(len(chunk.Constants))); err != nil {
		return err
	}
	for _, constant := range chunk.Constants {
		if err := s.writeValue(w, constant); err != nil {
			return err
		}
	}

	if err := s.writeUint32(w, uint32(len(chunk.Positions))); err != nil {
		return err
	}
	for _, pos := range chunk.Positions {
		for _, field := range []int32{int32(pos.InstructionOffset), int32(pos.Line), int32(pos.Column)} {
			if err := binary.Write(w, binary.LittleEndian, field); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Serializer) readChunk(r io.Reader) (*Chunk, error) {
	name, err := s.readString(r)
	if err != nil {
		return nil, err
	}
	file, err := s.readString(r)
	if err != nil {
		return nil, err
	}
	chunk := NewChunk(name, file)

	var localCount int32
	if err := binary.Read(r, binary.LittleEndian, &localCount); err != nil {
		return nil, err
	}
	chunk.LocalCount = int(localCount)

	codeLen, err := s.readUint32(r)
	if err != nil {
		return nil, err
	}
	chunk.Code = make([]Instruction, codeLen)
	for i := range chunk.Code {
		var raw uint32
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, err
		}
		chunk.Code[i] = Instruction(raw)
	}

	constLen, err := s.readUint32(r)
	if err != nil {
		return nil, err
	}
	chunk.Constants = make([]Value, constLen)
	for i := range chunk.Constants {
		value, err := s.readValue(r)
		if err != nil {
			return nil, err
		}
		chunk.Constants[i] = value
	}

	posLen, err := s.readUint32(r)
	if err != nil {
		return nil, err
	}
	chunk.Positions = make([]PosInfo, posLen)
	for i := range chunk.Positions {
		var fields [3]int32
		for j := range fields {
			if err := binary.Read(r, binary.LittleEndian, &fields[j]); err != nil {
				return nil, err
			}
		}
		chunk.Positions[i] = PosInfo{
			InstructionOffset: int(fields[0]),
			Line:              int(fields[1]),
			Column:            int(fields[2]),
		}
	}
	return chunk, nil
}

// ============================================================================
// Value serialization
// ============================================================================

func (s *Serializer) writeValue(w io.Writer, value Value) error {
	if err := binary.Write(w, binary.LittleEndian, byte(value.Type)); err != nil {
		return err
	}
	switch value.Type {
	case ValueNil:
		return nil
	case ValueBool:
		b := byte(0)
		if value.AsBool() {
			b = 1
		}
		return binary.Write(w, binary.LittleEndian, b)
	case ValueInt:
		return binary.Write(w, binary.LittleEndian, value.AsInt())
	case ValueFloat:
		return binary.Write(w, binary.LittleEndian, math.Float64bits(value.AsFloat()))
	case ValueString:
		return s.writeString(w, value.AsString())
	case ValueChar:
		return binary.Write(w, binary.LittleEndian, int32(value.AsChar()))
	case ValueList:
		list := value.AsList()
		if err := s.writeUint32(w, uint32(list.Length())); err != nil {
			return err
		}
		for i := 0; i < list.Length(); i++ {
			elem, _ := list.Get(i)
			if err := s.writeValue(w, elem); err != nil {
				return err
			}
		}
		return nil
	case ValueQuot:
		return s.writeChunk(w, value.AsQuot())
	default:
		return fmt.Errorf("cannot serialize value of type %s", value.Type)
	}
}

func (s *Serializer) readValue(r io.Reader) (Value, error) {
	var tag byte
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return NilValue(), err
	}
	switch ValueType(tag) {
	case ValueNil:
		return NilValue(), nil
	case ValueBool:
		var b byte
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return NilValue(), err
		}
		return BoolValue(b != 0), nil
	case ValueInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return NilValue(), err
		}
		return IntValue(i), nil
	case ValueFloat:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return NilValue(), err
		}
		return FloatValue(math.Float64frombits(bits)), nil
	case ValueString:
		str, err := s.readString(r)
		if err != nil {
			return NilValue(), err
		}
		return StringValue(str), nil
	case ValueChar:
		var r32 int32
		if err := binary.Read(r, binary.LittleEndian, &r32); err != nil {
			return NilValue(), err
		}
		return CharValue(rune(r32)), nil
	case ValueList:
		count, err := s.readUint32(r)
		if err != nil {
			return NilValue(), err
		}
		elems := make([]Value, count)
		for i := range elems {
			elem, err := s.readValue(r)
			if err != nil {
				return NilValue(), err
			}
			elems[i] = elem
		}
		return ListValue(&ListInstance{elements: elems}), nil
	case ValueQuot:
		chunk, err := s.readChunk(r)
		if err != nil {
			return NilValue(), err
		}
		return QuotValue(chunk), nil
	default:
		return NilValue(), fmt.Errorf("unknown value tag %d", tag)
	}
}

// ============================================================================
// Primitive helpers
// ============================================================================

func (s *Serializer) writeUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func (s *Serializer) readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func (s *Serializer) writeString(w io.Writer, str string) error {
	if err := s.writeUint32(w, uint32(len(str))); err != nil {
		return err
	}
	_, err := w.Write([]byte(str))
	return err
}

func (s *Serializer) readString(r io.Reader) (string, error) {
	length, err := s.readUint32(r)
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
