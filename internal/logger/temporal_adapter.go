// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

// TemporalLogAdapter routes Temporal SDK logs into zerolog.
type TemporalLogAdapter struct {
	logger zerolog.Logger
}

var (
	_ log.Logger     = (*TemporalLogAdapter)(nil)
	_ log.WithLogger = (*TemporalLogAdapter)(nil)
)

// NewTemporalLogAdapter wraps logger for use as client.Options.Logger.
func NewTemporalLogAdapter(logger zerolog.Logger) log.Logger {
	return &TemporalLogAdapter{logger: logger}
}

func (t *TemporalLogAdapter) Debug(msg string, keyvals ...interface{}) {
	withKeyvals(t.logger.Debug(), keyvals).Msg(msg)
}

func (t *TemporalLogAdapter) Info(msg string, keyvals ...interface{}) {
	withKeyvals(t.logger.Info(), keyvals).Msg(msg)
}

func (t *TemporalLogAdapter) Warn(msg string, keyvals ...interface{}) {
	withKeyvals(t.logger.Warn(), keyvals).Msg(msg)
}

func (t *TemporalLogAdapter) Error(msg string, keyvals ...interface{}) {
	withKeyvals(t.logger.Error(), keyvals).Msg(msg)
}

// With returns an adapter carrying keyvals on every entry.
func (t *TemporalLogAdapter) With(keyvals ...interface{}) log.Logger {
	ctx := t.logger.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(keyvals[i]), keyvals[i+1])
	}
	return &TemporalLogAdapter{logger: ctx.Logger()}
}

// withKeyvals appends Temporal's alternating key/value pairs. A trailing
// key without a value is dropped.
func withKeyvals(event *zerolog.Event, keyvals []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		switch v := keyvals[i+1].(type) {
		case string:
			event = event.Str(key, v)
		case int:
			event = event.Int(key, v)
		case int32:
			event = event.Int32(key, v)
		case int64:
			event = event.Int64(key, v)
		case float64:
			event = event.Float64(key, v)
		case bool:
			event = event.Bool(key, v)
		case error:
			event = event.AnErr(key, v)
		case fmt.Stringer:
			event = event.Stringer(key, v)
		default:
			event = event.Interface(key, v)
		}
	}
	return event
}

// GetTemporalLogAdapter returns an adapter over the named component logger.
func GetTemporalLogAdapter(component string) log.Logger {
	return NewTemporalLogAdapter(GetLogger(component))
}
