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

package log

import (
	"encoding/json"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const GenericEventType EventType = "generic"
const StartEventType EventType = "start"
const EndEventType EventType = "end"
const AppendEventType EventType = "append"
const EvalEventType EventType = "eval"
const CallEventType EventType = "call"
const FallbackEventType EventType = "fallback"
const WarningEventType EventType = "warning"
const DetectEventType EventType = "detect"
const ErrorEventType EventType = "error"

type EventComponent string

const EngineComponent EventComponent = "engine"
const BackendComponent EventComponent = "backend"
const ProtocolComponent EventComponent = "protocol"
const RegistryComponent EventComponent = "registry"
const WorkerComponent EventComponent = "worker"

type ChannelLevel string

const DebugChannelLevel ChannelLevel = "debug"
const InfoChannelLevel ChannelLevel = "info"

type Event struct {
	Level       string         `json:"level"`
	Component   EventComponent `json:"component"`
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	Message     string         `json:"message,omitempty"`
	Backend     *string        `json:"backend,omitempty"`
	Interpreter *string        `json:"interpreter,omitempty"`
	Strategy    *string        `json:"strategy,omitempty"`
	CallID      *string        `json:"callId,omitempty"`
	Length      *int           `json:"length,omitempty"`
	Err         *EventError    `json:"error,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
}

type EventError struct {
	Message string
}

func (e EventError) Error() string {
	return e.Message
}

func (e EventError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Message)
}

func NewEvent(eType EventType, component EventComponent) Event {
	return Event{
		Component: component,
		Type:      eType,
		Time:      time.Now(),
		ID:        uuid.NewString(),
	}
}

func (e Event) WithMessage(message string) Event {
	e.Message = message
	return e
}

func (e Event) WithBackend(backend string) Event {
	e.Backend = &backend
	return e
}

func (e Event) WithInterpreter(interpreter string) Event {
	e.Interpreter = &interpreter
	return e
}

func (e Event) WithStrategy(strategy string) Event {
	e.Strategy = &strategy
	return e
}

func (e Event) WithCallID(callID string) Event {
	e.CallID = &callID
	return e
}

func (e Event) WithLength(length int) Event {
	e.Length = &length
	return e
}

func (e Event) WithErr(err error) Event {
	e.Err = &EventError{Message: err.Error()}
	return e
}

func (e Event) ToArray() []any {
	result := make([]any, 0)
	v := reflect.ValueOf(e)
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldName := strings.ToLower(field.Name)

		// Skip fields which make no sense in the logging context
		if slices.Contains([]string{"args", "level", "message", "id", "time"}, fieldName) {
			continue
		}
		fieldValue := v.Field(i)
		if (fieldValue.Kind() == reflect.Pointer && !fieldValue.IsNil()) || fieldValue.Kind() != reflect.Pointer {
			var val any
			if fieldValue.Kind() == reflect.Pointer {
				val = fieldValue.Elem().Interface()
			} else {
				val = fieldValue.Interface()
			}
			result = append(result, fieldName, val)
		}
	}
	// Append Args map entries
	for k, val := range e.Args {
		result = append(result, k, val)
	}

	return result
}

func (e Event) WithArg(key string, value any) Event {
	if e.Args == nil {
		e.Args = make(map[string]any)
	}
	e.Args[key] = value
	return e
}

type StreamerLogger struct {
	mu              sync.RWMutex
	progressChannel chan Event
	logger          *slog.Logger
	channelLevel    ChannelLevel
}

func NewStreamerLogger(logger *slog.Logger, channel chan Event, channelLevel ChannelLevel) *StreamerLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamerLogger{
		logger:          logger,
		progressChannel: channel,
		channelLevel:    channelLevel,
	}
}

func (l *StreamerLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.progressChannel != nil {
		close(l.progressChannel)
		l.progressChannel = nil
	}
}

func (l *StreamerLogger) Channel() chan Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.progressChannel
}

// Logger returns the underlying slog logger.
func (l *StreamerLogger) Logger() *slog.Logger {
	return l.logger
}

func (l *StreamerLogger) Debug(event Event) {
	event.Level = "debug"
	l.logger.Debug(event.Message, event.ToArray()...)
	l.mu.RLock()
	level := l.channelLevel
	l.mu.RUnlock()
	if level == DebugChannelLevel {
		l.Send(event)
	}
}

func (l *StreamerLogger) Info(event Event) {
	event.Level = "info"
	l.logger.Info(event.Message, event.ToArray()...)
	l.Send(event)
}

func (l *StreamerLogger) Warn(event Event) {
	event.Level = "warn"
	l.logger.Warn(event.Message, event.ToArray()...)
	l.Send(event)
}

func (l *StreamerLogger) Err(event Event) {
	event.Level = "err"
	l.logger.Error(event.Message, event.ToArray()...)
	l.Send(event)
}

func (l *StreamerLogger) Send(event Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.progressChannel != nil {
		select {
		case l.progressChannel <- event:
		default:
			l.logger.Warn("streamer logger channel full, dropping event")
		}
	}
}
