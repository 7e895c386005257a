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

// Package otp implements the one time password email device: token
// generation and verification with a throttling on failed attempts.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/sorintlab/errors"

	"agola.io/accounts/services/accounts/types"
)

const (
	TokenDigits = 6

	// maxThrottleExponent bounds the throttling delay growth
	maxThrottleExponent = 24
)

const (
	MsgTokenRequired          = "Please enter your OTP token."
	MsgNotInteractive         = "The selected OTP device is not interactive"
	MsgInvalidToken           = "Invalid token. Please make sure you have entered it correctly."
	MsgVerificationNotAllowed = "Verification of the token is currently disabled"
)

func ChallengeExceptionMsg(err error) string {
	return fmt.Sprintf("Error generating OTP Token: %s", err)
}

func ChallengeMsg(message string) string {
	return fmt.Sprintf("OTP Token: %s", message)
}

func FailedAttemptsMsg(failureCount int) string {
	return fmt.Sprintf("Verification temporarily disabled because of %d failed attempt(s), please try again soon.", failureCount)
}

type NotAllowedReason string

const (
	NotAllowedReasonNFailedAttempts NotAllowedReason = "nFailedAttempts"
)

// NotAllowed reports why a device currently refuses verifications.
type NotAllowed struct {
	Reason       NotAllowedReason
	FailureCount int
	LockedUntil  time.Time
}

func (n *NotAllowed) Message() string {
	switch n.Reason {
	case NotAllowedReasonNFailedAttempts:
		return FailedAttemptsMsg(n.FailureCount)
	}
	return MsgVerificationNotAllowed
}

func randomToken() (string, error) {
	max := big.NewInt(1)
	for range TokenDigits {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return fmt.Sprintf("%0*d", TokenDigits, n), nil
}

// GenerateToken sets a new random token on the device valid until
// now+validity.
func GenerateToken(d *types.EmailDevice, now time.Time, validity time.Duration) error {
	token, err := randomToken()
	if err != nil {
		return errors.Wrap(err, "failed to generate token")
	}

	d.Token = &token
	d.ValidUntil = now.Add(validity)

	return nil
}

// VerifyToken checks the token against the device current token. A token
// can be verified only once.
func VerifyToken(d *types.EmailDevice, token string, now time.Time) bool {
	if d.Token == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*d.Token), []byte(token)) != 1 {
		return false
	}
	if !now.Before(d.ValidUntil) {
		return false
	}

	d.Token = nil
	d.ValidUntil = now

	return true
}

// throttleDelay saturates at the maximum duration instead of overflowing.
func throttleDelay(factor, failureCount int) time.Duration {
	exp := min(failureCount-1, maxThrottleExponent)
	if int64(factor) > (math.MaxInt64/int64(time.Second))>>exp {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(factor) * time.Second * time.Duration(1<<exp)
}

// VerifyIsAllowed reports whether the device accepts a verification at now.
// After n successive failures verifications are refused for
// factor*2^(n-1) seconds from the last failure. A factor of 0 disables the
// throttling.
func VerifyIsAllowed(d *types.EmailDevice, factor int, now time.Time) (bool, *NotAllowed) {
	if factor <= 0 || d.ThrottlingFailureCount <= 0 || d.ThrottlingFailureTimestamp == nil {
		return true, nil
	}

	lockedUntil := d.ThrottlingFailureTimestamp.Add(throttleDelay(factor, d.ThrottlingFailureCount))
	if now.Before(lockedUntil) {
		return false, &NotAllowed{
			Reason:       NotAllowedReasonNFailedAttempts,
			FailureCount: d.ThrottlingFailureCount,
			LockedUntil:  lockedUntil,
		}
	}

	return true, nil
}

func ThrottleIncrement(d *types.EmailDevice, now time.Time) {
	d.ThrottlingFailureTimestamp = &now
	d.ThrottlingFailureCount++
}

func ThrottleReset(d *types.EmailDevice) {
	d.ThrottlingFailureTimestamp = nil
	d.ThrottlingFailureCount = 0
}

// VerifyDeviceToken verifies the token honoring the device throttling. A
// successful verification resets the throttling, a failed one increments
// it. When the device is throttled the token isn't checked and the failure
// counter isn't changed.
func VerifyDeviceToken(d *types.EmailDevice, token string, factor int, now time.Time) bool {
	if ok, _ := VerifyIsAllowed(d, factor, now); !ok {
		return false
	}

	if VerifyToken(d, token, now) {
		ThrottleReset(d)
		return true
	}

	ThrottleIncrement(d, now)
	return false
}
