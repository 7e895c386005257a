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

package util

import (
	"testing"

	"gotest.tools/v3/assert"
)

var (
	goodUsernames = []string{
		"bar",
		"foo.bar",
		"foo_bar",
		"foo-bar",
		"foo+bar@example",
		"àèìòù",
		"1foobar",
	}
	badUsernames = []string{
		"",
		"foo bar",
		" foo",
		"foo#bar",
		"foo/bar",
		string(make([]byte, MaxUsernameLength+1)),
	}
)

func TestValidateUsername(t *testing.T) {
	for _, name := range goodUsernames {
		if !ValidateUsername(name) {
			t.Errorf("expect valid username for %q", name)
		}
	}
	for _, name := range badUsernames {
		if ValidateUsername(name) {
			t.Errorf("expect invalid username for %q", name)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		region string
		out    string
		err    bool
	}{
		{name: "e164", in: "+393331234567", out: "+393331234567"},
		{name: "spaces", in: " +39 333 123 4567 ", out: "+393331234567"},
		{name: "national number with region", in: "333 123 4567", region: "IT", out: "+393331234567"},
		{name: "national number without region", in: "333 123 4567", err: true},
		{name: "invalid", in: "+391", err: true},
		{name: "empty", in: "", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NormalizePhone(tt.in, tt.region)
			if tt.err {
				assert.Assert(t, err != nil)
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, out, tt.out)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in  string
		out string
		err bool
	}{
		{in: "user@example.com", out: "user@example.com"},
		{in: "User@EXAMPLE.com", out: "User@example.com"},
		{in: "user", err: true},
		{in: "user@", err: true},
		{in: "User <user@example.com>", err: true},
		{in: "", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			out, err := NormalizeEmail(tt.in)
			if tt.err {
				assert.Assert(t, err != nil)
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, out, tt.out)
		})
	}
}
