// Package bytecode defines the compilation unit the compiler produces
// and the runtime consumes: chunks of opcodes/operands, and the
// constant/identifier/closure/class pools a Module bundles them with
// (spec §4.E, §6.2).
//
// Grounded on debug/dwarf's reader-over-a-byte-stream style, adapted
// from "sequentially decode a DWARF .debug_info section" to
// "sequentially decode one bytecode chunk," and on other_examples'
// sentra-language-sentra (internal/vmregister/bytecode.go) and
// ProbeChain-go-probe (lang/vm/vm.go), both of which use the same
// single-byte-opcode, little-endian-operand encoding.
package bytecode

// Op is a single-byte opcode, stable numbering per spec §4.E.
type Op byte

const (
	OpConstant Op = iota
	OpTrue
	OpFalse
	OpNil

	OpNegate
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide

	OpNot
	OpEqual
	OpGreater
	OpLess

	OpPop
	OpReturn
	OpPrint

	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal

	OpGetLocal
	OpSetLocal

	OpGetUpvalue
	OpSetUpvalue

	OpSetProperty
	OpGetProperty

	OpJump
	OpJumpIfFalse

	OpCall
	OpInvoke
	OpCloseUpvalue

	OpClass
	OpClosure
	OpMethod

	OpImport
	OpImportGlobal
)

var opNames = [...]string{
	"CONSTANT", "TRUE", "FALSE", "NIL",
	"NEGATE", "ADD", "SUBTRACT", "MULTIPLY", "DIVIDE",
	"NOT", "EQUAL", "GREATER", "LESS",
	"POP", "RETURN", "PRINT",
	"DEFINE_GLOBAL", "GET_GLOBAL", "SET_GLOBAL",
	"GET_LOCAL", "SET_LOCAL",
	"GET_UPVALUE", "SET_UPVALUE",
	"SET_PROPERTY", "GET_PROPERTY",
	"JUMP", "JUMP_IF_FALSE",
	"CALL", "INVOKE", "CLOSE_UPVALUE",
	"CLASS", "CLOSURE", "METHOD",
	"IMPORT", "IMPORT_GLOBAL",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "UNKNOWN"
}
