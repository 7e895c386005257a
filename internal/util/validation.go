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
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
	"github.com/sorintlab/errors"
)

const (
	MaxUsernameLength = 150
	MaxNameLength     = 150
	MaxEmailLength    = 254
)

var usernameRegexp = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)

var (
	ErrValidation = errors.New("validation error")
)

// ValidateUsername reports whether s is made only of letters, digits and
// @ . + - _ characters and it's not longer than MaxUsernameLength.
func ValidateUsername(s string) bool {
	if utf8.RuneCountInString(s) > MaxUsernameLength {
		return false
	}
	return usernameRegexp.MatchString(s)
}

// NormalizePhone parses a phone number and returns it in E.164 format. A
// number without the international prefix is parsed using defaultRegion.
func NormalizePhone(s, defaultRegion string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.Errorf("empty phone number")
	}

	num, err := phonenumbers.Parse(s, defaultRegion)
	if err != nil {
		return "", errors.Wrapf(err, "cannot parse phone number %q", s)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.Errorf("invalid phone number %q", s)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// NormalizeEmail validates a bare email address and lowercases its domain
// part.
func NormalizeEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > MaxEmailLength {
		return "", errors.Errorf("invalid email address %q", s)
	}

	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return "", errors.Errorf("invalid email address %q", s)
	}

	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return "", errors.Errorf("invalid email address %q", s)
	}

	return s[:at] + "@" + strings.ToLower(s[at+1:]), nil
}
