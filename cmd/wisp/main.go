// Command wisp is the language's run/repl binary (spec §6.4: "a run
// binary (prog [script])... both print compile errors with source line
// numbers"). A thin cobra shell over the wisp package, the same
// relationship cmd/viewcore/objref.go has to golang.org/x/debug/gocore.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/wisplang/wisp"
	"github.com/wisplang/wisp/internal/config"
	"github.com/wisplang/wisp/internal/stdlib"
)

func main() {
	root := &cobra.Command{
		Use:   "wisp",
		Short: "run or explore wisp scripts",
	}
	root.AddCommand(runCmd(), replCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [script]",
		Short: "compile and interpret a script file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			src, err := os.ReadFile(args[0])
			if err != nil {
				exitf("wisp: %v\n", err)
			}
			vm, err := newVM()
			if err != nil {
				exitf("wisp: %v\n", err)
			}
			defer vm.Close()
			if err := wisp.Run(vm, string(src)); err != nil {
				exitf("wisp: %v\n", err)
			}
		},
	}
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "start an interactive read-eval-print loop",
		Run: func(cmd *cobra.Command, args []string) {
			runRepl()
		},
	}
}

func runRepl() {
	vm, err := newVM()
	if err != nil {
		exitf("wisp: %v\n", err)
	}
	defer vm.Close()

	rl, err := readline.New("wisp> ")
	if err != nil {
		exitf("wisp: %v\n", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			exitf("wisp: %v\n", err)
		}
		if line == "" {
			continue
		}
		module, errs := wisp.Compile(line)
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e)
			}
			continue
		}
		if err := vm.Interpret(module); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func newVM() (*wisp.VM, error) {
	cfg := config.Load()
	vm, err := wisp.New(cfg)
	if err != nil {
		return nil, err
	}
	vm.SetDebugGC(cfg.DebugGC)
	if err := stdlib.Install(vm); err != nil {
		return nil, err
	}
	return vm, nil
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
