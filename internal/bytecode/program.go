package bytecode

// Program is the fully linked output of compilation: a map from qualified
// word name to code object plus the distinguished main code object compiled
// from the root file's top-level expressions. Programs are immutable once
// compiled and may be shared between VM instances.
type Program struct {
	Words map[string]*Chunk
	Main  *Chunk
}

// NewProgram creates an empty program with the given main chunk.
func NewProgram(main *Chunk) *Program {
	return &Program{
		Words: make(map[string]*Chunk),
		Main:  main,
	}
}

// Lookup returns the code object registered under the qualified name.
func (p *Program) Lookup(name string) (*Chunk, bool) {
	chunk, ok := p.Words[name]
	return chunk, ok
}

// Validate checks every chunk in the program.
func (p *Program) Validate() error {
	if err := p.Main.Validate(); err != nil {
		return err
	}
	for _, chunk := range p.Words {
		if err := chunk.Validate(); err != nil {
			return err
		}
	}
	return nil
}
