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
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	format      string
	query       string
	output      string
	configPath  string
	debug       bool
	sourceFiles []string
)

var rootCmd = cobra.Command{
	Use:   filepath.Base(os.Args[0]),
	Short: "run JavaScript on the best engine available",
	Long: `
Run JavaScript on whatever engine the host offers: the embedded goja and otto interpreters, QuickJS or V8 when
compiled in, or an external interpreter such as Node.js, QuickJS, Gjs or JavaScriptCore.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return readConfig()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("backend", "", "backend to use (goja, otto, quickjs, v8, external)")
	flags.String("interpreter", "", "path or name of the external interpreter")
	flags.Bool("tempfile", false, "deliver code to the external interpreter through temp files")
	flags.String("evalstring", "", "flag used by the external interpreter to evaluate an inline argument")
	flags.Bool("init-global", false, "define global and globalThis when the engine lacks them")
	flags.Bool("threading", false, "serialise access to the engine")
	flags.Bool("whole-program", false, "rerun the whole program on every evaluation (native engines only)")
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	_ = viper.BindPFlag("backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("interpreter.path", flags.Lookup("interpreter"))
	_ = viper.BindPFlag("interpreter.tempfile", flags.Lookup("tempfile"))
	_ = viper.BindPFlag("interpreter.evalstring", flags.Lookup("evalstring"))
	_ = viper.BindPFlag("initGlobal", flags.Lookup("init-global"))
	_ = viper.BindPFlag("threading", flags.Lookup("threading"))
	_ = viper.BindPFlag("wholeProgram", flags.Lookup("whole-program"))

	viper.SetEnvPrefix("JSENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(webCmd)
}

func newLogger() *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.Default()
}
