// Copyright 2024 Sorint.lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied
// See the License for the specific language governing permissions and
// limitations under the License.

package testutil

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"
)

// NewLogger returns a logger writing to the test log. DEBUG=true enables the
// debug level, DETAILED_ERRORS=true logs errors with their stack.
func NewLogger(t *testing.T) zerolog.Logger {
	detailedErrors, _ := strconv.ParseBool(os.Getenv("DETAILED_ERRORS"))
	debug, _ := strconv.ParseBool(os.Getenv("DEBUG"))

	if detailedErrors {
		zerolog.ErrorMarshalFunc = errors.ErrorMarshalFunc
	}

	cw := zerolog.ConsoleWriter{
		Out:                 zerolog.TestWriter{T: t, Frame: 6},
		TimeFormat:          time.RFC3339Nano,
		FormatErrFieldValue: errors.FormatErrFieldValue,
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(cw).With().Timestamp().Stack().Caller().Logger().Level(level)
}

type helperT interface {
	Helper()
}
