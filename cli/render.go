/*
 * Copyright (C) 2026 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmespath/go-jmespath"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// renderResult serializes a result according to the chosen format, after applying the JMESPath query if one
// was given.
func renderResult(out any, format string, query string) ([]byte, error) {
	if query != "" {
		var err error
		if out, err = jmespath.Search(query, out); err != nil {
			return nil, fmt.Errorf("invalid query: %w", err)
		}
	}
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(out, "", " ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case formatYAML:
		return yaml.Marshal(out)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// printResult writes the rendered result to the output file or to stdout.
func printResult(cmd *cobra.Command, out any) error {
	text, err := renderResult(out, format, query)
	if err != nil {
		return err
	}
	if output != "" {
		return os.WriteFile(output, text, 0o644)
	}
	cmd.Print(string(text))
	return nil
}

// parseArgs reads command line call arguments as JSON, falling back to plain strings.
func parseArgs(args []string) []any {
	out := make([]any, 0, len(args))
	for _, arg := range args {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			v = arg
		}
		out = append(out, v)
	}
	return out
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format (json or yaml)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "JMESPath query applied to the result")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
}
