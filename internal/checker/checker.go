// Package checker runs the full analysis pipeline over one Allium
// source file: lex, parse, build the symbol table, then the reference
// and enum passes.
package checker

import (
	"github.com/foundry-zero/allium-check/internal/parser"
	"github.com/foundry-zero/allium-check/internal/report"
	"github.com/foundry-zero/allium-check/internal/semantic"
)

// Options extends the checker's closed name sets, typically from an
// extensions config file.
type Options struct {
	ExtraPrimitives []string
	ExtraBuiltins   []string
}

// Check analyses source and returns every diagnostic found. filename
// only populates the file field of each diagnostic; it is never opened.
//
// A syntax error yields exactly one diagnostic and no semantic
// checking. Otherwise both semantic passes run to completion and their
// diagnostics are concatenated, references before enums.
func Check(filename, source string) []report.Diagnostic {
	return CheckWith(filename, source, Options{})
}

// CheckWith is Check with extended primitive/builtin name sets.
func CheckWith(filename, source string, opts Options) []report.Diagnostic {
	f, perr := parser.ParseWith(source, opts.ExtraPrimitives)
	if perr != nil {
		return []report.Diagnostic{
			report.New(filename, perr.Loc.Line, perr.Loc.Col, perr.Message),
		}
	}

	st := semantic.BuildSymbolTable(f)

	diags := semantic.CheckReferencesWith(filename, f, st, semantic.Options{
		ExtraBuiltins: opts.ExtraBuiltins,
	})
	diags = append(diags, semantic.CheckEnums(filename, f, st)...)
	return diags
}
