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

package otp

import (
	"math"
	"regexp"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"agola.io/accounts/internal/testutil"
	"agola.io/accounts/internal/util"
	"agola.io/accounts/services/accounts/types"
)

var tokenRegexp = regexp.MustCompile(`^[0-9]{6}$`)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	d := &types.EmailDevice{}

	err := GenerateToken(d, now, 5*time.Minute)
	testutil.NilError(t, err)

	assert.Assert(t, d.Token != nil)
	assert.Assert(t, tokenRegexp.MatchString(*d.Token), "unexpected token %q", *d.Token)
	assert.Equal(t, d.ValidUntil, now.Add(5*time.Minute))
}

func TestVerifyToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		token      *string
		validUntil time.Time
		in         string
		at         time.Time
		ok         bool
	}{
		{
			name:       "valid token",
			token:      util.Ptr("123456"),
			validUntil: now.Add(time.Minute),
			in:         "123456",
			at:         now,
			ok:         true,
		},
		{
			name:       "wrong token",
			token:      util.Ptr("123456"),
			validUntil: now.Add(time.Minute),
			in:         "654321",
			at:         now,
		},
		{
			name:       "expired token",
			token:      util.Ptr("123456"),
			validUntil: now.Add(time.Minute),
			in:         "123456",
			at:         now.Add(time.Minute),
		},
		{
			name:       "no token",
			validUntil: now.Add(time.Minute),
			in:         "",
			at:         now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := &types.EmailDevice{Token: tt.token, ValidUntil: tt.validUntil}
			ok := VerifyToken(d, tt.in, tt.at)
			assert.Equal(t, ok, tt.ok)

			if tt.ok {
				assert.Assert(t, cmp.Nil(d.Token))
				assert.Equal(t, d.ValidUntil, tt.at)
			}
		})
	}
}

func TestVerifyTokenOnlyOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	d := &types.EmailDevice{}
	err := GenerateToken(d, now, time.Minute)
	testutil.NilError(t, err)

	token := *d.Token
	assert.Assert(t, VerifyToken(d, token, now))
	assert.Assert(t, !VerifyToken(d, token, now))
}

func TestVerifyIsAllowed(t *testing.T) {
	t.Parallel()

	last := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		factor       int
		failureCount int
		at           time.Time
		allowed      bool
		lockedUntil  time.Time
	}{
		{
			name:    "no failures",
			factor:  1,
			at:      last,
			allowed: true,
		},
		{
			name:         "throttling disabled",
			factor:       0,
			failureCount: 10,
			at:           last,
			allowed:      true,
		},
		{
			name:         "one failure, locked",
			factor:       1,
			failureCount: 1,
			at:           last.Add(500 * time.Millisecond),
			lockedUntil:  last.Add(1 * time.Second),
		},
		{
			name:         "one failure, unlocked",
			factor:       1,
			failureCount: 1,
			at:           last.Add(1 * time.Second),
			allowed:      true,
		},
		{
			name:         "three failures, locked",
			factor:       1,
			failureCount: 3,
			at:           last.Add(3 * time.Second),
			lockedUntil:  last.Add(4 * time.Second),
		},
		{
			name:         "three failures, factor 2, locked",
			factor:       2,
			failureCount: 3,
			at:           last.Add(7 * time.Second),
			lockedUntil:  last.Add(8 * time.Second),
		},
		{
			name:         "many failures, big factor, locked",
			factor:       500,
			failureCount: 30,
			at:           last.Add(1 * time.Second),
			lockedUntil:  last.Add(500 * time.Second * (1 << 24)),
		},
		{
			name:         "many failures, delay saturated, locked",
			factor:       600,
			failureCount: 30,
			at:           last.Add(100 * 365 * 24 * time.Hour),
			lockedUntil:  last.Add(time.Duration(math.MaxInt64)),
		},
		{
			name:         "three failures, factor 2, unlocked",
			factor:       2,
			failureCount: 3,
			at:           last.Add(8 * time.Second),
			allowed:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := &types.EmailDevice{ThrottlingFailureCount: tt.failureCount}
			if tt.failureCount > 0 {
				d.ThrottlingFailureTimestamp = &last
			}

			allowed, notAllowed := VerifyIsAllowed(d, tt.factor, tt.at)
			assert.Equal(t, allowed, tt.allowed)
			if tt.allowed {
				assert.Assert(t, cmp.Nil(notAllowed))
				return
			}

			assert.Equal(t, notAllowed.Reason, NotAllowedReasonNFailedAttempts)
			assert.Equal(t, notAllowed.FailureCount, tt.failureCount)
			assert.Equal(t, notAllowed.LockedUntil, tt.lockedUntil)
		})
	}
}

func TestVerifyDeviceToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	d := &types.EmailDevice{Token: util.Ptr("123456"), ValidUntil: now.Add(time.Hour)}

	// wrong token increments the failure counter
	assert.Assert(t, !VerifyDeviceToken(d, "000000", 1, now))
	assert.Equal(t, d.ThrottlingFailureCount, 1)
	assert.Equal(t, *d.ThrottlingFailureTimestamp, now)

	// throttled device doesn't check the token and keeps the counter
	assert.Assert(t, !VerifyDeviceToken(d, "123456", 1, now.Add(500*time.Millisecond)))
	assert.Equal(t, d.ThrottlingFailureCount, 1)
	assert.Assert(t, d.Token != nil)

	// after the delay the right token is accepted and the throttling reset
	assert.Assert(t, VerifyDeviceToken(d, "123456", 1, now.Add(time.Second)))
	assert.Equal(t, d.ThrottlingFailureCount, 0)
	assert.Assert(t, cmp.Nil(d.ThrottlingFailureTimestamp))
	assert.Assert(t, cmp.Nil(d.Token))
}

func TestMessages(t *testing.T) {
	t.Parallel()

	n := &NotAllowed{Reason: NotAllowedReasonNFailedAttempts, FailureCount: 3}
	assert.Equal(t, n.Message(), "Verification temporarily disabled because of 3 failed attempt(s), please try again soon.")
	assert.Equal(t, (&NotAllowed{}).Message(), MsgVerificationNotAllowed)
	assert.Equal(t, ChallengeMsg("sent to foo@example.com"), "OTP Token: sent to foo@example.com")
}
