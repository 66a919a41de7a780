// Command allium-check runs the static semantic checker over Allium
// specification files.
//
// Usage:
//
//	allium-check [flags] file1.allium [file2.allium ...]
//
// Exit codes:
//
//	0  All files are clean
//	1  One or more diagnostics were reported
//	2  Input error (missing file, bad flags, bad config)
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/foundry-zero/allium-check/internal/checker"
	"github.com/foundry-zero/allium-check/internal/config"
	"github.com/foundry-zero/allium-check/internal/report"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("allium-check", flag.ContinueOnError)
	fs.SetOutput(stderr)

	formatFlag := fs.String("format", "text", "Output format: text or json")
	quiet := fs.Bool("quiet", false, "Suppress output (exit code only)")
	configPath := fs.String("config", "", "Path to an extensions config file")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "allium-check %s\n", version)
		return 0
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(stderr, "error: no input files specified")
		fs.Usage()
		return 2
	}

	if *formatFlag != "text" && *formatFlag != "json" {
		fmt.Fprintf(stderr, "error: invalid format %q (use text or json)\n", *formatFlag)
		return 2
	}

	var opts checker.Options
	if *configPath != "" {
		ext, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
		opts.ExtraPrimitives = ext.ExtraPrimitives
		opts.ExtraBuiltins = ext.ExtraBuiltins
	}

	exitCode := 0
	for _, path := range files {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			exitCode = max(exitCode, 2)
			continue
		}

		diags := checker.CheckWith(path, string(source), opts)
		if len(diags) > 0 {
			exitCode = max(exitCode, 1)
		}

		if *quiet {
			continue
		}
		if err := printDiagnostics(stderr, diags, *formatFlag); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
	}

	return exitCode
}

// printDiagnostics writes diagnostics to w in the selected format. Text
// output is one diagnostic per line; JSON is a single array per file.
func printDiagnostics(w io.Writer, diags []report.Diagnostic, format string) error {
	switch format {
	case "json":
		data, err := report.FormatJSON(diags)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	case "text":
		if len(diags) > 0 {
			fmt.Fprintln(w, report.FormatText(diags))
		}
	}
	return nil
}
