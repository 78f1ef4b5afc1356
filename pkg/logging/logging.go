/*
Copyright 2024 The Aibrix Team.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package logging builds the process-wide zerolog.Logger used across the
// dataplane. New returns a value rather than a package-level singleton,
// so the caller injects it explicitly into server.SharedState and
// everything underneath it.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options configures the logger returned by New.
type Options struct {
	AppName string
	Level   string // DEBUG, INFO, WARN, ERROR, FATAL, PANIC, DISABLED
	Pretty  bool   // console-writer output instead of JSON, for local runs
}

// New builds a zerolog.Logger with the app name and level baked in as
// structured fields, ready to be passed down through server.SharedState.
func New(opts Options) zerolog.Logger {
	level := parseLevel(opts.Level)

	var out = os.Stdout
	logger := zerolog.New(out).With().Timestamp().Str("app", opts.AppName).Logger().Level(level)

	if opts.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-6s", i))
			},
		})
	}

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO", "":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "PANIC":
		return zerolog.PanicLevel
	case "DISABLED":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
