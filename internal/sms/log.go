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

package sms

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"
)

// LogVerifier generates the verification tokens locally and logs them
// instead of sending them. Used for development and tests.
type LogVerifier struct {
	log zerolog.Logger

	mu    sync.Mutex
	codes map[string]string
}

func NewLogVerifier(log zerolog.Logger) *LogVerifier {
	return &LogVerifier{
		log:   log,
		codes: map[string]string{},
	}
}

func (v *LogVerifier) SendToken(ctx context.Context, phone string) (Status, error) {
	if phone == "" {
		return StatusError, errors.Errorf("empty phone number")
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return StatusError, errors.WithStack(err)
	}
	code := fmt.Sprintf("%06d", n)

	v.mu.Lock()
	v.codes[phone] = code
	v.mu.Unlock()

	v.log.Info().Str("phone", phone).Str("code", code).Msg("verification token")

	return StatusPending, nil
}

func (v *LogVerifier) CheckToken(ctx context.Context, phone, code string) (Status, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	expected, ok := v.codes[phone]
	if !ok {
		return StatusError, errors.Errorf("no pending verification for %q", phone)
	}
	if expected != code {
		return StatusPending, nil
	}

	delete(v.codes, phone)

	return StatusApproved, nil
}

// Code returns the pending verification token of the phone number.
func (v *LogVerifier) Code(phone string) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.codes[phone]
}
