// Command groklang runs the execution pipeline against a small,
// hard-coded demo program. The front end (lexer, parser, type checker)
// that would normally produce the IR this binary feeds to the loader is
// out of scope for this module; `compile` and `lsp` are stubbed
// accordingly.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kabudu/groklang/internal/ir"
	"github.com/kabudu/groklang/internal/loader"
	"github.com/kabudu/groklang/internal/value"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "compile":
		fmt.Fprintln(os.Stderr, "groklang compile: the front end is not part of this module")
		os.Exit(1)
	case "lsp":
		fmt.Fprintln(os.Stderr, "groklang lsp: the language server is not part of this module")
		os.Exit(1)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: groklang run [-trace] [-n int]")
	fmt.Fprintln(os.Stderr, "       groklang compile <file>   (not part of this module)")
	fmt.Fprintln(os.Stderr, "       groklang lsp               (not part of this module)")
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	trace := fs.Bool("trace", false, "log every dispatched opcode")
	n := fs.Int64("n", 10, "argument passed to the demo program's fib(n)")
	fs.Parse(args)

	fns := demoProgram()
	l, err := loader.New(fns, loader.Options{Trace: *trace})
	if err != nil {
		fmt.Fprintln(os.Stderr, "groklang: load error:", err)
		os.Exit(1)
	}

	result, err := l.Execute("main", []value.Value{value.Int(*n)})
	if err != nil {
		fmt.Fprintln(os.Stderr, "groklang: execution error:", err)
		os.Exit(1)
	}
	fmt.Println(result.String())
}

// demoProgram builds a tiny standing demonstration of the pipeline:
// fib(n) = if n < 2 then n else fib(n-1) + fib(n-2), called from main
// with the -n flag's value. It exists so `groklang run` has something
// to execute without a front end to produce IR from source text.
func demoProgram() []*ir.Function {
	fib := &ir.Function{
		Name:   "fib",
		Params: []string{"n"},
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.LoadVar("n"), ir.PushInt(2), ir.Lt(), ir.JmpIfFalse("recurse"),
				ir.LoadVar("n"), ir.Ret(),
			}},
			{Label: "recurse", Instructions: []ir.Instruction{
				ir.LoadVar("n"), ir.PushInt(1), ir.Sub(), ir.Call("fib", 1),
				ir.LoadVar("n"), ir.PushInt(2), ir.Sub(), ir.Call("fib", 1),
				ir.Add(), ir.Ret(),
			}},
		},
	}
	main := &ir.Function{
		Name:   "main",
		Params: []string{"n"},
		Blocks: []ir.Block{
			{Label: "entry", Instructions: []ir.Instruction{
				ir.LoadVar("n"), ir.Call("fib", 1), ir.Ret(),
			}},
		},
	}
	return []*ir.Function{fib, main}
}
