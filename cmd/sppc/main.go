package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sppc/sppc/pkg/hostinclude"
	"github.com/sppc/sppc/pkg/lexer"
	"github.com/sppc/sppc/pkg/preprocessor"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	includePaths []string
	defineFlags  []string
	outputPath   string
	showDiags    bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sppc [file]",
		Short: "sppc preprocesses SourcePawn source, expanding macros and resolving conditionals",
		Long: `sppc runs the SourcePawn preprocessor core over a .sp file (or stdin)
and writes the fully macro-expanded, conditional-resolved source to stdout
(or -o), preserving the original's line geometry exactly.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreprocess(args, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write output to this file instead of stdout")
	rootCmd.Flags().BoolVar(&showDiags, "diagnostics", false, "Print LSP-shaped diagnostics to stderr")

	return rootCmd
}

func runPreprocess(args []string, out, errOut io.Writer) error {
	var (
		content  string
		rootDir  string
		fileName string
	)
	if len(args) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(errOut, "sppc: error reading stdin: %v\n", err)
			return err
		}
		content = string(b)
		rootDir = "."
		fileName = "<stdin>"
	} else {
		fileName = args[0]
		b, err := os.ReadFile(fileName)
		if err != nil {
			fmt.Fprintf(errOut, "sppc: error reading %s: %v\n", fileName, err)
			return err
		}
		content = string(b)
		rootDir = filepath.Dir(fileName)
	}

	seed, err := commandLineDefines(defineFlags)
	if err != nil {
		fmt.Fprintf(errOut, "sppc: %v\n", err)
		return err
	}

	resolver := hostinclude.New(rootDir, includePaths)
	result := preprocessor.PreprocessSeeded(0, content, seed, resolver.Include)

	if showDiags {
		for _, d := range preprocessor.Diagnostics(result) {
			fmt.Fprintf(errOut, "%s:%d: %s\n", fileName, d.Range.Start, d.Message)
		}
	}

	if result.Aborted() {
		fmt.Fprintf(errOut, "sppc: %v\n", result.FatalErr)
		return result.FatalErr
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(result.Text), 0644); err != nil {
			fmt.Fprintf(errOut, "sppc: error writing %s: %v\n", outputPath, err)
			return err
		}
		return nil
	}

	fmt.Fprint(out, result.Text)
	return nil
}

// commandLineDefines turns a list of "-D NAME" / "-D NAME=VALUE" flags
// into a seed macro table, lexing each VALUE the same way #define's body
// scanner would so the resulting Macro is expanded identically.
func commandLineDefines(flags []string) (preprocessor.MacrosMap, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	seed := make(preprocessor.MacrosMap, len(flags))
	for _, d := range flags {
		name, value, _ := strings.Cut(d, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("malformed -D flag %q: missing macro name", d)
		}
		seed[name] = &preprocessor.Macro{
			Name:    name,
			NameLen: len(name),
			Body:    lexDefineValue(value),
		}
	}
	return seed, nil
}

// lexDefineValue lexes a -D flag's VALUE portion into the symbol slice a
// Macro.Body expects, exactly the subset of kinds #define's own body
// scanner collects (everything up to EOF, since a command-line value has
// no newline to stop at).
func lexDefineValue(value string) []lexer.Symbol {
	if value == "" {
		return nil
	}
	lx := lexer.New(value)
	var body []lexer.Symbol
	for {
		s := lx.Next()
		if s.Kind == lexer.EOF {
			break
		}
		body = append(body, s)
	}
	return body
}
