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

package types

import (
	"time"

	"agola.io/accounts/internal/sqlg"
	"agola.io/accounts/internal/sqlg/sql"
)

// EmailDevice is a throttled OTP device delivering its tokens by email.
type EmailDevice struct {
	sqlg.ObjectMeta

	UserID string `json:"user_id"`
	// Name is the device human readable name, it's the user email
	Name      string `json:"name"`
	Confirmed bool   `json:"confirmed"`

	// Token is the last generated token, nil after a successful verification
	Token      *string   `json:"-"`
	ValidUntil time.Time `json:"-"`

	// Email is an alternative address where the tokens are sent instead of
	// the user email
	Email *string `json:"email"`

	ThrottlingFailureTimestamp *time.Time `json:"throttling_failure_timestamp"`
	ThrottlingFailureCount     int        `json:"throttling_failure_count"`
}

func NewEmailDevice(tx *sql.Tx) *EmailDevice {
	return &EmailDevice{
		ObjectMeta: sqlg.NewObjectMeta(tx),
		Confirmed:  true,
	}
}
