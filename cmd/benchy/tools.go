package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-benchy/internal/domain"
)

func newToolsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Validate a tool configuration and print the catalog",
		Long: `Tools loads a tool configuration document, builds the registry exactly as
a run would (resolving builtin callables and compiling argument schemas),
and prints the resulting catalog. Configuration errors surface here instead
of mid-experiment.`,
		Example: `  benchy tools --config configs/tools.yaml`,
		RunE: func(*cobra.Command, []string) error {
			registry, err := loadToolset(configPath)
			if err != nil {
				return err
			}
			printCatalog(os.Stdout, registry.Describe())
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "configs/tools.yaml", "YAML tool configuration")
	return cmd
}

func printCatalog(w io.Writer, defs []domain.ToolDefinition) {
	fmt.Fprintf(w, "%d tools registered\n\n", len(defs))
	for _, def := range defs {
		binding := string(def.Binding.Kind)
		switch def.Binding.Kind {
		case domain.BindingLocal:
			binding += " -> " + def.Binding.FunctionName
		case domain.BindingHTTP:
			method := def.Binding.Method
			if method == "" {
				method = "GET"
			}
			binding += " -> " + method + " " + def.Binding.Endpoint
		}

		fmt.Fprintf(w, "%s  (%s)\n", def.Name, binding)
		if def.Description != "" {
			fmt.Fprintf(w, "    %s\n", def.Description)
		}
		if len(def.Parameters) > 0 {
			fmt.Fprintf(w, "    args: %s\n", formatParameters(def.Parameters))
		}
		fmt.Fprintln(w)
	}
}

// formatParameters renders "name* type" pairs, required ones starred,
// sorted by name for stable output.
func formatParameters(params map[string]domain.ParameterSpec) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		spec := params[name]
		marker := ""
		if spec.Required {
			marker = "*"
		}
		parts = append(parts, fmt.Sprintf("%s%s %s", name, marker, spec.Type))
	}
	return strings.Join(parts, ", ")
}
