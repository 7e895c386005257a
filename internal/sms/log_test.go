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
	"testing"

	"gotest.tools/v3/assert"

	"agola.io/accounts/internal/testutil"
)

func TestLogVerifier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := testutil.NewLogger(t)
	v := NewLogVerifier(log)

	phone := "+393331234567"

	status, err := v.SendToken(ctx, phone)
	testutil.NilError(t, err)
	assert.Equal(t, status, StatusPending)

	code := v.Code(phone)
	assert.Equal(t, len(code), 6)

	status, err = v.CheckToken(ctx, phone, "wrong")
	testutil.NilError(t, err)
	assert.Equal(t, status, StatusPending)

	status, err = v.CheckToken(ctx, phone, code)
	testutil.NilError(t, err)
	assert.Equal(t, status, StatusApproved)

	// a token can be approved only once
	status, err = v.CheckToken(ctx, phone, code)
	assert.ErrorContains(t, err, "no pending verification")
	assert.Equal(t, status, StatusError)
}
