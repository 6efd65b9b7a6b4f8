package bytecode

import "encoding/binary"

// Chunk is a flat byte stream of opcodes and operands. Operand
// endianness is little-endian throughout (spec §4.E, §6.2).
type Chunk struct {
	Code []byte
}

// Len returns the number of bytes emitted so far.
func (c *Chunk) Len() int { return len(c.Code) }

// WriteByte appends a single byte (an opcode, or a one-byte operand such
// as CALL's arity) and returns its offset.
func (c *Chunk) WriteByte(b byte) int {
	c.Code = append(c.Code, b)
	return len(c.Code) - 1
}

// WriteOp appends an opcode.
func (c *Chunk) WriteOp(op Op) int { return c.WriteByte(byte(op)) }

// WriteU32 appends a little-endian uint32 operand (constant/identifier/
// closure-index forms) and returns its offset.
func (c *Chunk) WriteU32(v uint32) int {
	off := len(c.Code)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
	return off
}

// WriteI16 appends a little-endian signed 16-bit jump delta placeholder
// and returns its offset (for later patching via PatchJump).
func (c *Chunk) WriteI16(v int16) int {
	off := len(c.Code)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(v))
	c.Code = append(c.Code, buf[:]...)
	return off
}

// WriteU16 appends a little-endian uint16 operand (local/upvalue slot
// indices, per spec §4.F/§4.G) and returns its offset.
func (c *Chunk) WriteU16(v uint16) int {
	off := len(c.Code)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	c.Code = append(c.Code, buf[:]...)
	return off
}

// PatchJump overwrites the 2-byte operand at placeholderOffset with the
// delta from just after that operand to target, per spec §4.E's jump
// patching rule: "target − placeholder − 2."
func (c *Chunk) PatchJump(placeholderOffset, target int) {
	delta := target - placeholderOffset - 2
	binary.LittleEndian.PutUint16(c.Code[placeholderOffset:], uint16(int16(delta)))
}

// ReadByte reads a single byte at ip.
func (c *Chunk) ReadByte(ip int) byte { return c.Code[ip] }

// ReadU32 reads a little-endian uint32 at ip.
func (c *Chunk) ReadU32(ip int) uint32 { return binary.LittleEndian.Uint32(c.Code[ip:]) }

// ReadI16 reads a little-endian signed 16-bit delta at ip.
func (c *Chunk) ReadI16(ip int) int16 { return int16(binary.LittleEndian.Uint16(c.Code[ip:])) }

// ReadU16 reads a little-endian uint16 at ip.
func (c *Chunk) ReadU16(ip int) uint16 { return binary.LittleEndian.Uint16(c.Code[ip:]) }
