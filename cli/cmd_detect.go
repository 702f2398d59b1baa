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
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/theirish81/jsengine"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/embedded"
	"github.com/theirish81/jsengine/external"
)

type interpreterFacts struct {
	Name         string   `json:"name" yaml:"name"`
	Path         string   `json:"path" yaml:"path"`
	Command      []string `json:"command" yaml:"command"`
	Strategy     string   `json:"strategy" yaml:"strategy"`
	Incompatible bool     `json:"incompatible,omitempty" yaml:"incompatible,omitempty"`
}

type hostFacts struct {
	Backends    map[backend.Kind]bool `json:"backends" yaml:"backends"`
	Natives     []backend.Kind        `json:"natives" yaml:"natives"`
	Default     backend.Kind          `json:"default,omitempty" yaml:"default,omitempty"`
	Interpreter *interpreterFacts     `json:"interpreter" yaml:"interpreter"`
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show the JavaScript engines available on this host.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Interpreter != nil {
			if _, err := jsengine.SetExternalInterpreter(cfg.Interpreter.Path, external.InterpreterOptions{
				Name:       cfg.Interpreter.Name,
				TempFile:   cfg.Interpreter.TempFile,
				EvalString: cfg.Interpreter.EvalString,
				Args:       cfg.Interpreter.Args,
			}); err != nil {
				return err
			}
		}
		return printResult(cmd, collectFacts(jsengine.DefaultRegistry))
	},
}

func init() {
	addOutputFlags(detectCmd)
}

func collectFacts(registry *jsengine.Registry) hostFacts {
	facts := hostFacts{
		Backends: lo.SliceToMap(backend.Kinds, func(kind backend.Kind) (backend.Kind, bool) {
			return kind, registry.IsAvailable(kind)
		}),
		Natives: embedded.Natives(),
	}
	if kind, err := registry.DefaultBackend(); err == nil {
		facts.Default = kind
	}
	if interpreter := registry.DefaultInterpreter(); interpreter != nil {
		facts.Interpreter = &interpreterFacts{
			Name:         interpreter.Name,
			Path:         interpreter.Path,
			Command:      interpreter.Command,
			Strategy:     interpreter.Strategy().String(),
			Incompatible: interpreter.Incompatible(),
		}
	}
	return facts
}
