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

type EmailDeviceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type VerifyOTPRequest struct {
	DeviceID  string `json:"device_id"`
	Token     string `json:"token"`
	Challenge bool   `json:"challenge"`
}

type ChangeEmailRequest struct {
	DeviceID  string `json:"device_id"`
	NewEmail  string `json:"new_email"`
	Token     string `json:"token"`
	Challenge bool   `json:"challenge"`
}

// VerifyOTPResponse contains the challenge message when a token was sent or
// the verified device when the token was verified.
type VerifyOTPResponse struct {
	ChallengeMessage string               `json:"challenge_message,omitempty"`
	Device           *EmailDeviceResponse `json:"device,omitempty"`
	User             *UserResponse        `json:"user,omitempty"`
}
