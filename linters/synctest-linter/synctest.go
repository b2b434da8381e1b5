// Package main provides a golangci-lint plugin that rejects wall-clock
// timing in test files. Tests coordinate goroutines with channels; a test
// that reaches for time.Sleep or time.After is flaky by construction
// unless it runs under testing/synctest's fake clock.
package main

import (
	"go/ast"
	"strings"

	"github.com/golangci/plugin-module-register/register"
	"golang.org/x/tools/go/analysis"
)

func init() {
	register.Plugin("synctest", New)
}

// Settings configures the synctest linter.
type Settings struct {
	// GuideURL, when set, is appended to each diagnostic so the report
	// points at the project's testing conventions.
	GuideURL string `json:"guide-url" mapstructure:"guide-url"`

	// SleepOnly restricts the check to time.Sleep, leaving time.After
	// and time.Tick alone. Off by default: select-on-After in a test is
	// the same wall-clock dependence wearing a different hat.
	SleepOnly bool `json:"sleep-only" mapstructure:"sleep-only"`
}

type synctestLinter struct {
	settings Settings
}

// New builds the plugin from golangci-lint settings.
func New(settings any) (register.LinterPlugin, error) {
	s, err := register.DecodeSettings[Settings](settings)
	if err != nil {
		return nil, err
	}
	return &synctestLinter{settings: s}, nil
}

// BuildAnalyzers returns the analyzers for this linter.
func (l *synctestLinter) BuildAnalyzers() ([]*analysis.Analyzer, error) {
	return []*analysis.Analyzer{
		{
			Name: "synctest",
			Doc:  "forbids wall-clock timing in tests that do not use testing/synctest",
			Run:  l.run,
		},
	}, nil
}

// GetLoadMode returns the load mode for this linter. The check is purely
// syntactic, so the syntax mode keeps golangci-lint from loading type
// information it will never use.
func (l *synctestLinter) GetLoadMode() string {
	return register.LoadModeSyntax
}

func (l *synctestLinter) run(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		filename := pass.Fset.Position(file.Pos()).Filename
		if !strings.HasSuffix(filename, "_test.go") {
			continue
		}
		// Files under the fake clock are allowed to sleep.
		if importsSynctest(file) {
			continue
		}

		ast.Inspect(file, func(n ast.Node) bool {
			name, ok := clockCall(n)
			if !ok {
				return true
			}
			if l.settings.SleepOnly && name != "Sleep" {
				return true
			}
			msg := "test calls time." + name + "; synchronize with channels or run under testing/synctest"
			if l.settings.GuideURL != "" {
				msg += " (see " + l.settings.GuideURL + ")"
			}
			pass.Report(analysis.Diagnostic{
				Pos:      n.Pos(),
				Message:  msg,
				Category: "synctest",
			})
			return true
		})
	}

	return nil, nil
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

func importsSynctest(file *ast.File) bool {
	for _, imp := range file.Imports {
		if imp.Path != nil && strings.Trim(imp.Path.Value, `"`) == "testing/synctest" {
			return true
		}
	}
	return false
}
