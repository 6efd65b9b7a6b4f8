package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wisplang/wisp/internal/bytecode"
)

func TestConstantEncodingRoundTrips(t *testing.T) {
	numIdx := uint32(5)
	strIdx := uint32(9)

	numOperand := bytecode.EncodeNumberConstant(numIdx)
	strOperand := bytecode.EncodeStringConstant(strIdx)

	isStr, idx := bytecode.DecodeConstant(numOperand)
	require.False(t, isStr)
	require.Equal(t, numIdx, idx)

	isStr, idx = bytecode.DecodeConstant(strOperand)
	require.True(t, isStr)
	require.Equal(t, strIdx, idx)
}

func TestIdentifierInterningDeduplicates(t *testing.T) {
	m := bytecode.NewModule()
	a := m.AddIdentifier("foo")
	b := m.AddIdentifier("bar")
	c := m.AddIdentifier("foo")

	require.Equal(t, a, c, "repeated identifiers must share one index")
	require.NotEqual(t, a, b)
	require.Equal(t, []string{"foo", "bar"}, m.Identifiers)
}

func TestNumberAndStringTablesAreNotDeduplicated(t *testing.T) {
	m := bytecode.NewModule()
	a := m.AddNumber(1.5)
	b := m.AddNumber(1.5)
	require.NotEqual(t, a, b, "each AddNumber call gets its own slot")
	require.Equal(t, []float64{1.5, 1.5}, m.Numbers)

	sa := m.AddString("x")
	sb := m.AddString("x")
	require.NotEqual(t, sa, sb)
}

func TestNewModuleHasOneTopLevelChunk(t *testing.T) {
	m := bytecode.NewModule()
	require.Len(t, m.Chunks, 1)
	idx := m.AddChunk()
	require.Equal(t, 1, idx)
	require.Len(t, m.Chunks, 2)
}

func TestChunkJumpPatching(t *testing.T) {
	var c bytecode.Chunk
	c.WriteOp(bytecode.OpJumpIfFalse)
	placeholder := c.Len()
	c.WriteI16(0)
	c.WriteOp(bytecode.OpPop)
	target := c.Len()
	c.PatchJump(placeholder, target)

	delta := c.ReadI16(placeholder)
	require.Equal(t, int16(target-placeholder-2), delta)
}

func TestChunkOperandRoundTrip(t *testing.T) {
	var c bytecode.Chunk
	off32 := c.WriteU32(0xdeadbeef)
	off16 := c.WriteU16(0xbeef)

	require.Equal(t, uint32(0xdeadbeef), c.ReadU32(off32))
	require.Equal(t, uint16(0xbeef), c.ReadU16(off16))
}
