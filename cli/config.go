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
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/viper"
	"github.com/theirish81/jsengine"
)

// supported output formats
const (
	formatYAML = "yaml"
	formatJSON = "json"
)

// readConfig merges the configuration file, if any, under flags and JSENGINE_* variables.
func readConfig() error {
	if configPath == "" {
		return nil
	}
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("cannot read the configuration: %w", err)
	}
	return nil
}

// loadConfig decodes the merged settings into an engine configuration.
func loadConfig() (jsengine.Config, error) {
	settings := viper.AllSettings()
	if viper.GetString("interpreter.path") == "" {
		delete(settings, "interpreter")
	}
	return jsengine.ConfigFromMap(settings)
}

// newEngine builds an engine from the merged configuration and stages the given source files.
func newEngine(ctx context.Context, logger *slog.Logger, files ...string) (*jsengine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	engine, err := jsengine.New(jsengine.WithConfig(cfg), jsengine.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			_ = engine.Close()
			return nil, err
		}
		if err := engine.AppendBytes(ctx, data); err != nil {
			_ = engine.Close()
			return nil, err
		}
	}
	return engine, nil
}
