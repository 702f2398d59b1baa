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

package jsengine

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/theirish81/jsengine/backend"
	"github.com/theirish81/jsengine/external"
	"gopkg.in/yaml.v3"
)

// InterpreterConfig selects an external interpreter.
type InterpreterConfig struct {
	Path       string   `json:"path" yaml:"path" mapstructure:"path" validate:"required"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	TempFile   bool     `json:"tempfile" yaml:"tempfile" mapstructure:"tempfile"`
	EvalString string   `json:"evalstring,omitempty" yaml:"evalstring,omitempty" mapstructure:"evalstring"`
	Args       []string `json:"args,omitempty" yaml:"args,omitempty" mapstructure:"args"`
}

// Config is the declarative form of the engine options.
type Config struct {
	Source            string             `json:"source,omitempty" yaml:"source,omitempty" mapstructure:"source"`
	InitGlobal        bool               `json:"initGlobal" yaml:"initGlobal" mapstructure:"initGlobal"`
	InitDeleteGlobals []string           `json:"initDeleteGlobals,omitempty" yaml:"initDeleteGlobals,omitempty" mapstructure:"initDeleteGlobals" validate:"dive,jsident"`
	Threading         bool               `json:"threading" yaml:"threading" mapstructure:"threading"`
	Backend           string             `json:"backend,omitempty" yaml:"backend,omitempty" mapstructure:"backend" validate:"omitempty,oneof=goja otto quickjs v8 external"`
	WholeProgram      bool               `json:"wholeProgram" yaml:"wholeProgram" mapstructure:"wholeProgram"`
	Interpreter       *InterpreterConfig `json:"interpreter,omitempty" yaml:"interpreter,omitempty" mapstructure:"interpreter"`
}

var configValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("jsident", func(fl validator.FieldLevel) bool {
		return globalName.MatchString(fl.Field().String())
	})
	return v
})

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := configValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ConfigFromYAML parses a YAML configuration.
func ConfigFromYAML(data []byte) (Config, error) {
	cfg := Config{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ConfigFromMap decodes a loosely typed map, such as viper settings, into a configuration.
func ConfigFromMap(data map[string]any) (Config, error) {
	cfg := Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(data); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// WithConfig applies a configuration. The external interpreter, if any, is resolved by New.
func WithConfig(cfg Config) Option {
	return func(o *Options) {
		o.config = &cfg
		o.source = cfg.Source
		o.initGlobal = cfg.InitGlobal
		o.initDeleteGlobals = append(o.initDeleteGlobals, cfg.InitDeleteGlobals...)
		o.threading = cfg.Threading
		o.kind = backend.Kind(cfg.Backend)
		o.wholeProgram = cfg.WholeProgram
	}
}

// interpreter builds the configured external interpreter, nil when none is configured.
func (c Config) interpreter() (*external.Interpreter, error) {
	if c.Interpreter == nil {
		return nil, nil
	}
	return external.NewInterpreter(c.Interpreter.Path, external.InterpreterOptions{
		Name:       c.Interpreter.Name,
		TempFile:   c.Interpreter.TempFile,
		EvalString: c.Interpreter.EvalString,
		Args:       c.Interpreter.Args,
	})
}
