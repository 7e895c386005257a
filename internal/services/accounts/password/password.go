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

package password

import (
	_ "embed"
	"regexp"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sorintlab/errors"
	"golang.org/x/crypto/bcrypt"

	"agola.io/accounts/internal/util"
)

const (
	MinLength = 8

	// MaxSimilarity is the quick ratio above which a password is considered
	// too similar to a user attribute
	MaxSimilarity = 0.7
)

//go:embed common-passwords.txt
var commonPasswordsData string

var commonPasswords = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, l := range strings.Split(commonPasswordsData, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		m[l] = struct{}{}
	}
	return m
}()

var nonWordRegexp = regexp.MustCompile(`\W+`)

func Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return string(hash), nil
}

// Check reports whether password matches the bcrypt hash. An empty hash
// never matches.
func Check(hash, password string) bool {
	if hash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UserAttribute is a user attribute the password must not be similar to.
type UserAttribute struct {
	Name  string
	Value string
}

// Validate runs all the password validators and returns an *util.Errors
// with one error per failed validator.
func Validate(password string, attrs []UserAttribute) error {
	errs := &util.Errors{}

	if err := validateSimilarity(password, attrs); err != nil {
		errs.Append(err)
	}
	if err := validateMinLength(password); err != nil {
		errs.Append(err)
	}
	if err := validateCommon(password); err != nil {
		errs.Append(err)
	}
	if err := validateNumeric(password); err != nil {
		errs.Append(err)
	}

	if errs.IsErr() {
		return errs
	}

	return nil
}

func validateMinLength(password string) error {
	if len([]rune(password)) < MinLength {
		return errors.Errorf("This password is too short. It must contain at least %d characters.", MinLength)
	}
	return nil
}

func validateCommon(password string) error {
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		return errors.Errorf("This password is too common.")
	}
	return nil
}

func validateNumeric(password string) error {
	if password == "" {
		return nil
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return errors.Errorf("This password is entirely numeric.")
}

func validateSimilarity(password string, attrs []UserAttribute) error {
	password = strings.ToLower(password)

	for _, attr := range attrs {
		if attr.Value == "" {
			continue
		}
		value := strings.ToLower(attr.Value)
		parts := append(nonWordRegexp.Split(value, -1), value)
		for _, part := range parts {
			if exceedsMaxLengthRatio(password, part) {
				continue
			}
			if quickRatio(password, part) >= MaxSimilarity {
				return errors.Errorf("The password is too similar to the %s.", attr.Name)
			}
		}
	}

	return nil
}

// exceedsMaxLengthRatio reports whether the password is so much longer than
// value that they cannot be similar.
func exceedsMaxLengthRatio(password, value string) bool {
	pwdLen := len([]rune(password))
	valueLen := len([]rune(value))
	lengthBound := MaxSimilarity / 2 * float64(pwdLen)

	return pwdLen >= 10*valueLen && float64(valueLen) < lengthBound
}

// quickRatio is an upper bound of the similarity of a and b computed on
// their characters.
func quickRatio(a, b string) float64 {
	return difflib.NewMatcher(splitChars(a), splitChars(b)).QuickRatio()
}

func splitChars(s string) []string {
	chars := make([]string, 0, len(s))
	for _, r := range s {
		chars = append(chars, string(r))
	}
	return chars
}
