package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tasq/tasqmcp/internal/tools"
)

func newToolsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the MCP tool table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderTools(cmd.OutOrStdout(), format, tools.Definitions())
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown, yaml or json")
	return cmd
}

func renderTools(w io.Writer, format string, defs []map[string]any) error {
	switch format {
	case "markdown", "md":
		return renderMarkdown(w, defs)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"tools": defs}); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"tools": defs})
	default:
		return fmt.Errorf("unknown format %q (want markdown, yaml or json)", format)
	}
}

func renderMarkdown(w io.Writer, defs []map[string]any) error {
	fmt.Fprintln(w, "# MCP Tools (Generated)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This file is generated by `tasqmcp tools`.")
	fmt.Fprintln(w)

	for _, d := range defs {
		name, _ := d["name"].(string)
		desc, _ := d["description"].(string)
		fmt.Fprintf(w, "- `%s`\n", name)
		if desc != "" {
			fmt.Fprintf(w, "  - Description: %s\n", desc)
		}

		schema, _ := d["inputSchema"].(map[string]any)
		props, _ := schema["properties"].(map[string]any)
		requiredRaw, _ := schema["required"].([]string)
		requiredSet := make(map[string]bool, len(requiredRaw))
		for _, r := range requiredRaw {
			requiredSet[r] = true
		}

		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if len(keys) > 0 {
			fmt.Fprintln(w, "  - Input:")
			for _, k := range keys {
				req := "optional"
				if requiredSet[k] {
					req = "required"
				}
				line := fmt.Sprintf("    - `%s` (%s", k, req)
				if prop, ok := props[k].(map[string]any); ok {
					if def, ok := prop["default"]; ok {
						line += fmt.Sprintf(", default `%v`", def)
					}
				}
				fmt.Fprintln(w, line+")")
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}
