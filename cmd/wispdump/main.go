// Command wispdump disassembles a compiled wisp module (spec §6.4: "a
// dump binary that disassembles a compiled module... prints compile
// errors with source line numbers"). Grounded on
// cmd/viewcore/main.go's flag-parse-then-dispatch shape.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wisplang/wisp"
	"github.com/wisplang/wisp/internal/disasm"
)

func usage() {
	fmt.Fprintf(os.Stderr, `
Usage:

        wispdump script

Disassembles the compiled bytecode for script and writes it to stdout.
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "%s: expected exactly one script argument\n", os.Args[0])
		usage()
		os.Exit(2)
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "wispdump: %v\n", err)
		os.Exit(1)
	}

	module, errs := wisp.Compile(string(src))
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(1)
	}

	disasm.Module(os.Stdout, module)
}
