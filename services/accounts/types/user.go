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
	"strings"
	"time"

	"github.com/huandu/xstrings"

	"agola.io/accounts/internal/sqlg"
	"agola.io/accounts/internal/sqlg/sql"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderNone   Gender = "None"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNone:
		return true
	}
	return false
}

// ParseGender accepts the gender names case insensitively.
func ParseGender(s string) (Gender, bool) {
	g := Gender(xstrings.FirstRuneToUpper(strings.ToLower(strings.TrimSpace(s))))
	return g, g.IsValid()
}

type User struct {
	sqlg.ObjectMeta

	// Phone is the E.164 phone number used to login
	Phone string `json:"phone"`
	// PhoneTemp is the new phone number waiting for verification
	PhoneTemp *string `json:"phone_temp"`

	Email string `json:"email"`
	// EmailTemp is the new email address waiting for verification
	EmailTemp     *string `json:"email_temp"`
	EmailVerified bool    `json:"email_verified"`

	Username  *string `json:"username"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Gender    Gender  `json:"gender"`

	// IsActive is false until the phone number is verified
	IsActive bool `json:"is_active"`

	PasswordHash string     `json:"-"`
	LastLogin    *time.Time `json:"last_login"`
}

func NewUser(tx *sql.Tx) *User {
	return &User{
		ObjectMeta: sqlg.NewObjectMeta(tx),
	}
}

// VerificationPhone is the phone number that must be verified: the pending
// new phone number, if any, or the current one.
func (u *User) VerificationPhone() string {
	if u.PhoneTemp != nil {
		return *u.PhoneTemp
	}
	return u.Phone
}
