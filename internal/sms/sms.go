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

// Package sms implements the phone number verification through an sms
// verification provider.
package sms

import (
	"context"
)

// Status is the verification status reported by the provider.
type Status string

const (
	// StatusPending is reported after a token is sent and when a checked
	// token is wrong
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusCanceled Status = "canceled"
	// StatusError is reported when the provider call failed
	StatusError Status = "got error"
)

// Verifier sends verification tokens to phone numbers and checks them.
type Verifier interface {
	// SendToken sends a verification token to the phone number. The send is
	// successful when the status is StatusPending.
	SendToken(ctx context.Context, phone string) (Status, error)
	// CheckToken checks the token received by the phone number. The token
	// is correct when the status is StatusApproved.
	CheckToken(ctx context.Context, phone, code string) (Status, error)
}
