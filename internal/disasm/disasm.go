// Package disasm implements the disassembler collaborator spec.md §1
// names but scopes out of the core: a reader over a compiled
// bytecode.Module that prints one line per instruction, used by
// cmd/wispdump.
//
// Grounded on debug/dwarf's sequential reader-over-a-byte-stream style
// (adapted here from "decode a DWARF section" to "decode one chunk")
// and cmd/viewcore/main.go's tabwriter-aligned, per-line output.
package disasm

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wisplang/wisp/internal/bytecode"
)

// Module writes a full disassembly of m to w: every chunk, in order,
// each instruction on its own tab-aligned line.
func Module(w io.Writer, m *bytecode.Module) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i := range m.Chunks {
		fmt.Fprintf(tw, "== chunk %d ==\n", i)
		Chunk(tw, m, i)
	}
	tw.Flush()
}

// Chunk disassembles a single chunk of m, by index.
func Chunk(w io.Writer, m *bytecode.Module, chunkIdx int) {
	c := &m.Chunks[chunkIdx]
	for ip := 0; ip < c.Len(); {
		ip = instruction(w, m, c, ip)
	}
}

// instruction prints one decoded instruction at ip and returns the
// offset of the next one.
func instruction(w io.Writer, m *bytecode.Module, c *bytecode.Chunk, ip int) int {
	start := ip
	op := bytecode.Op(c.ReadByte(ip))
	ip++

	switch op {
	case bytecode.OpConstant:
		operand := c.ReadU32(ip)
		ip += 4
		isString, idx := bytecode.DecodeConstant(operand)
		if isString {
			if int(idx) < len(m.Strings) {
				fmt.Fprintf(w, "%04d\t%s\tstr[%d]\t%q\n", start, op, idx, m.Strings[idx])
			} else {
				fmt.Fprintf(w, "%04d\t%s\tstr[%d]\t<out of range>\n", start, op, idx)
			}
		} else {
			if int(idx) < len(m.Numbers) {
				fmt.Fprintf(w, "%04d\t%s\tnum[%d]\t%g\n", start, op, idx, m.Numbers[idx])
			} else {
				fmt.Fprintf(w, "%04d\t%s\tnum[%d]\t<out of range>\n", start, op, idx)
			}
		}

	case bytecode.OpDefineGlobal, bytecode.OpGetGlobal, bytecode.OpSetGlobal,
		bytecode.OpGetProperty, bytecode.OpSetProperty, bytecode.OpMethod,
		bytecode.OpImportGlobal:
		identIdx := c.ReadU32(ip)
		ip += 4
		fmt.Fprintf(w, "%04d\t%s\tident[%d]\t%s\n", start, op, identIdx, identName(m, identIdx))

	case bytecode.OpImport:
		strIdx := c.ReadU32(ip)
		ip += 4
		path := "<out of range>"
		if int(strIdx) < len(m.Strings) {
			path = m.Strings[strIdx]
		}
		fmt.Fprintf(w, "%04d\t%s\tstr[%d]\t%q\n", start, op, strIdx, path)

	case bytecode.OpClosure:
		closureIdx := c.ReadU32(ip)
		ip += 4
		name := "<out of range>"
		if int(closureIdx) < len(m.Closures) {
			name = m.Closures[closureIdx].Function.Name
		}
		fmt.Fprintf(w, "%04d\t%s\tclosure[%d]\t%s\n", start, op, closureIdx, name)

	case bytecode.OpClass:
		classIdx := c.ReadByte(ip)
		ip++
		name := "<out of range>"
		if int(classIdx) < len(m.Classes) {
			name = m.Classes[classIdx].Name
		}
		fmt.Fprintf(w, "%04d\t%s\tclass[%d]\t%s\n", start, op, classIdx, name)

	case bytecode.OpGetLocal, bytecode.OpSetLocal, bytecode.OpGetUpvalue, bytecode.OpSetUpvalue:
		slot := c.ReadU16(ip)
		ip += 2
		fmt.Fprintf(w, "%04d\t%s\tslot[%d]\n", start, op, slot)

	case bytecode.OpJump, bytecode.OpJumpIfFalse:
		delta := c.ReadI16(ip)
		ip += 2
		fmt.Fprintf(w, "%04d\t%s\t%d -> %d\n", start, op, start, start+3+int(delta))

	case bytecode.OpCall:
		arity := c.ReadByte(ip)
		ip++
		fmt.Fprintf(w, "%04d\t%s\targs=%d\n", start, op, arity)

	case bytecode.OpInvoke:
		arity := c.ReadByte(ip)
		ip++
		identIdx := c.ReadU32(ip)
		ip += 4
		fmt.Fprintf(w, "%04d\t%s\targs=%d\tident[%d]\t%s\n", start, op, arity, identIdx, identName(m, identIdx))

	default:
		fmt.Fprintf(w, "%04d\t%s\n", start, op)
	}

	return ip
}

func identName(m *bytecode.Module, idx uint32) string {
	if int(idx) >= len(m.Identifiers) {
		return "<out of range>"
	}
	return m.Identifiers[idx]
}
