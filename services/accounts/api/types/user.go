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

import "time"

type UserResponse struct {
	ID            string     `json:"id"`
	Phone         string     `json:"phone"`
	PhoneTemp     *string    `json:"phone_temp,omitempty"`
	Email         string     `json:"email"`
	EmailTemp     *string    `json:"email_temp,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	Username      *string    `json:"username,omitempty"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Gender        string     `json:"gender"`
	IsActive      bool       `json:"is_active"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

type CreateUserRequest struct {
	Phone     string  `json:"phone"`
	Email     string  `json:"email"`
	Username  *string `json:"username,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Gender    string  `json:"gender"`
	Password1 string  `json:"password1"`
	Password2 string  `json:"password2"`
}

type UpdateUserRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Gender    *string `json:"gender,omitempty"`
}

type VerifyPhoneRequest struct {
	Code string `json:"code"`
}

type ChangePhoneRequest struct {
	Phone string `json:"phone"`
}

// MessageResponse is a response with only a human readable message.
type MessageResponse struct {
	Message string `json:"message"`
}

type DeleteCurrentUserRequest struct {
	Password string `json:"password"`
}

type AdminCreateUserRequest struct {
	Phone     string  `json:"phone"`
	Email     string  `json:"email"`
	Username  *string `json:"username,omitempty"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Password  string  `json:"password"`
}
