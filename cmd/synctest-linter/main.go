// Command synctest-linter scans test files for wall-clock timing calls.
// It is the standalone twin of the golangci-lint plugin in
// linters/synctest-linter, kept dependency-free so it runs anywhere the
// Go toolchain does.
//
// Usage:
//
//	synctest-linter [-q] [path ...]
//
// Each path is walked recursively; with no arguments the current
// directory is scanned. The exit status is 1 when any finding is
// reported.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var quiet = flag.Bool("q", false, "suppress the all-clear message")

type finding struct {
	pos     token.Position
	message string
}

func main() {
	flag.Parse()

	roots := flag.Args()
	if len(roots) == 0 {
		roots = []string{"."}
	}

	var findings []finding
	for _, root := range roots {
		found, err := scanTree(root)
		if err != nil {
			fmt.Fprintf(os.Stderr, "synctest-linter: %v\n", err)
			os.Exit(2)
		}
		findings = append(findings, found...)
	}

	for _, f := range findings {
		fmt.Printf("%s: %s\n", f.pos, f.message)
	}
	if len(findings) > 0 {
		os.Exit(1)
	}
	if !*quiet {
		fmt.Println("no wall-clock timing in tests")
	}
}

// scanTree walks root and collects findings from every test file.
// Directories the Go toolchain ignores (hidden, underscore-prefixed,
// vendor, testdata) are skipped.
func scanTree(root string) ([]finding, error) {
	var findings []finding

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		fileFindings, err := scanFile(path)
		if err != nil {
			// Unparseable files are someone else's problem; keep walking.
			fmt.Fprintf(os.Stderr, "synctest-linter: skipping %s: %v\n", path, err)
			return nil
		}
		findings = append(findings, fileFindings...)
		return nil
	})

	return findings, err
}

func scanFile(filename string) ([]finding, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	// Files under testing/synctest run on a fake clock; sleeping there
	// is deterministic and allowed.
	for _, imp := range file.Imports {
		if imp.Path != nil && strings.Trim(imp.Path.Value, `"`) == "testing/synctest" {
			return nil, nil
		}
	}

	var findings []finding
	ast.Inspect(file, func(n ast.Node) bool {
		name, ok := clockCall(n)
		if !ok {
			return true
		}
		findings = append(findings, finding{
			pos:     fset.Position(n.Pos()),
			message: "test calls time." + name + "; synchronize with channels or run under testing/synctest",
		})
		return true
	})

	return findings, nil
}

// clockCall reports whether n is a call to one of the time package's
// wall-clock primitives, returning the function name when it is.
func clockCall(n ast.Node) (string, bool) {
	call, ok := n.(*ast.CallExpr)
	if !ok {
		return "", false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || pkg.Name != "time" {
		return "", false
	}
	switch sel.Sel.Name {
	case "Sleep", "After", "Tick":
		return sel.Sel.Name, true
	}
	return "", false
}
