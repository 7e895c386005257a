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

package mail

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"agola.io/accounts/internal/testutil"
)

func TestTemplates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		otpBody string
		out     string
		err     string
	}{
		{
			name: "default template",
			out:  "123456",
		},
		{
			name:    "custom template",
			otpBody: "Your code is {{ .Token | quote }}",
			out:     `Your code is "123456"`,
		},
		{
			name:    "invalid template",
			otpBody: "{{ .Token ",
			err:     "failed to parse otp body template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tmpl, err := NewTemplates(tt.otpBody)
			if tt.err != "" {
				assert.ErrorContains(t, err, tt.err)
				return
			}
			testutil.NilError(t, err)

			out, err := tmpl.OTPBody(&OTPData{Token: "123456"})
			testutil.NilError(t, err)
			assert.Equal(t, out, tt.out)
		})
	}
}

func TestPasswordResetTemplates(t *testing.T) {
	t.Parallel()

	tmpl, err := NewTemplates("")
	testutil.NilError(t, err)

	data := &PasswordResetData{
		SiteName: "accounts.example.com",
		ResetURL: "https://accounts.example.com/password_reset_confirm/uid/token/",
		Phone:    "+393331234567",
	}

	subject, err := tmpl.PasswordResetSubject(data)
	testutil.NilError(t, err)
	assert.Equal(t, subject, "Password reset on accounts.example.com")

	body, err := tmpl.PasswordResetBody(data)
	testutil.NilError(t, err)
	assert.Assert(t, strings.Contains(body, data.ResetURL))
	assert.Assert(t, strings.Contains(body, data.Phone))
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := testutil.NewLogger(t)
	s := NewLogSender(log)

	for i := range maxLogMessages + 10 {
		err := s.Send(ctx, &Message{From: "from@example.com", To: fmt.Sprintf("user%d@example.com", i%3), Subject: "subject", Body: fmt.Sprintf("body %d", i)})
		testutil.NilError(t, err)
	}

	messages := s.Messages()
	assert.Assert(t, cmp.Len(messages, maxLogMessages))
	assert.Equal(t, messages[0].Body, "body 10")

	m := s.LastMessageTo("user0@example.com")
	assert.Assert(t, m != nil)
	assert.Equal(t, m.Body, fmt.Sprintf("body %d", maxLogMessages+8))
	assert.Assert(t, cmp.Nil(s.LastMessageTo("unknown@example.com")))
}
