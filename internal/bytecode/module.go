package bytecode

// StringConstantFlag is OR'd into a CONSTANT opcode's u32 operand to
// select the Strings table instead of the Numbers table (spec §4.E
// names a single CONSTANT opcode but two separate constant tables; this
// is this implementation's resolution — see DESIGN.md). The Numbers and
// Strings tables are each expected to stay well under 2^31 entries.
const StringConstantFlag uint32 = 1 << 31

// EncodeNumberConstant and EncodeStringConstant build a CONSTANT
// operand referring to the given table index.
func EncodeNumberConstant(idx uint32) uint32 { return idx }
func EncodeStringConstant(idx uint32) uint32 { return idx | StringConstantFlag }

// DecodeConstant splits a CONSTANT operand back into (isString, index).
func DecodeConstant(operand uint32) (isString bool, index uint32) {
	return operand&StringConstantFlag != 0, operand &^ StringConstantFlag
}

// FunctionProto is the compile-time-known part of spec §3's Function
// descriptor: "Name, chunk index, arity." The fourth field ("owning
// Import") isn't known until the runtime instantiates a Closure from
// this prototype against a specific loaded Import, so it lives on the
// runtime object (internal/object.Closure), not here.
type FunctionProto struct {
	Name       string
	ChunkIndex int
	Arity      int
}

// UpvalueSource distinguishes the two upvalue recipe kinds of spec §4.F.
type UpvalueSource int

const (
	// FromLocal captures a local slot of the immediately enclosing frame.
	FromLocal UpvalueSource = iota
	// FromUpvalue captures an upvalue of the immediately enclosing closure.
	FromUpvalue
)

// UpvalueRecipe tells the runtime how to materialize one of a closure's
// captured upvalues when the CLOSURE opcode runs (spec §4.F, §6.2).
type UpvalueRecipe struct {
	Source UpvalueSource
	Index  uint16
}

// ClosureProto is one entry of a Module's closures table.
type ClosureProto struct {
	Function FunctionProto
	Upvalues []UpvalueRecipe
}

// ClassProto is one entry of a Module's classes table.
type ClassProto struct {
	Name string
}

// Module is the immutable output of compilation (spec §3, §6.2).
type Module struct {
	Chunks      []Chunk
	Numbers     []float64
	Strings     []string
	Identifiers []string
	Closures    []ClosureProto
	Classes     []ClassProto
}

// NewModule returns an empty Module with one (empty) top-level chunk
// already allocated at index 0.
func NewModule() *Module {
	return &Module{Chunks: []Chunk{{}}}
}

// AddChunk appends a new empty chunk and returns its index.
func (m *Module) AddChunk() int {
	m.Chunks = append(m.Chunks, Chunk{})
	return len(m.Chunks) - 1
}

// AddNumber interns f into the numbers table and returns its index.
// Numbers are not deduplicated (matching a straightforward single-pass
// compiler that never revisits earlier constants).
func (m *Module) AddNumber(f float64) uint32 {
	m.Numbers = append(m.Numbers, f)
	return uint32(len(m.Numbers) - 1)
}

// AddString interns s into the strings table and returns its index.
func (m *Module) AddString(s string) uint32 {
	m.Strings = append(m.Strings, s)
	return uint32(len(m.Strings) - 1)
}

// AddIdentifier interns name into the identifiers table, deduplicating
// by name so that repeated references to the same global/property share
// one constant index (required for DEFINE_GLOBAL/GET_GLOBAL symbol
// numbering to agree, per spec §3's invariant on the globals table).
func (m *Module) AddIdentifier(name string) uint32 {
	for i, s := range m.Identifiers {
		if s == name {
			return uint32(i)
		}
	}
	m.Identifiers = append(m.Identifiers, name)
	return uint32(len(m.Identifiers) - 1)
}

// AddClosure appends a closure prototype and returns its index.
func (m *Module) AddClosure(c ClosureProto) uint32 {
	m.Closures = append(m.Closures, c)
	return uint32(len(m.Closures) - 1)
}

// AddClass appends a class prototype and returns its index.
func (m *Module) AddClass(c ClassProto) uint32 {
	m.Classes = append(m.Classes, c)
	return uint32(len(m.Classes) - 1)
}
