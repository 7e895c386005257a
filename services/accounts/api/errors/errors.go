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

package errors

import "agola.io/accounts/internal/util"

const (
	ErrorCodeUserDoesNotExist util.ErrorCode = "userDoesNotExist"
	ErrorCodeUserNotOwner     util.ErrorCode = "userNotOwner"

	ErrorCodeInvalidPhone       util.ErrorCode = "invalidPhone"
	ErrorCodePhoneAlreadyExists util.ErrorCode = "phoneAlreadyExists"
	ErrorCodePhoneUnchanged     util.ErrorCode = "phoneUnchanged"
	ErrorCodeSMSSendFailed      util.ErrorCode = "smsSendFailed"
	ErrorCodeSMSCheckFailed     util.ErrorCode = "smsCheckFailed"

	ErrorCodeInvalidEmail       util.ErrorCode = "invalidEmail"
	ErrorCodeEmailAlreadyExists util.ErrorCode = "emailAlreadyExists"
	ErrorCodeInvalidUserName    util.ErrorCode = "invalidUserName"
	ErrorCodeUserNameExists     util.ErrorCode = "userNameAlreadyExists"
	ErrorCodeInvalidName        util.ErrorCode = "invalidName"
	ErrorCodeInvalidGender      util.ErrorCode = "invalidGender"

	ErrorCodePasswordMismatch     util.ErrorCode = "passwordMismatch"
	ErrorCodeInvalidPassword      util.ErrorCode = "invalidPassword"
	ErrorCodeIncorrectOldPassword util.ErrorCode = "incorrectOldPassword"
	ErrorCodeIncorrectPassword    util.ErrorCode = "incorrectPassword"

	ErrorCodeInvalidLogin    util.ErrorCode = "invalidLogin"
	ErrorCodeInactiveAccount util.ErrorCode = "inactiveAccount"

	ErrorCodeNoAccountForEmail        util.ErrorCode = "noAccountForEmail"
	ErrorCodeEmailNotVerified         util.ErrorCode = "emailNotVerified"
	ErrorCodeInvalidPasswordResetLink util.ErrorCode = "invalidPasswordResetLink"

	ErrorCodeEmailVerificationRequired util.ErrorCode = "emailVerificationRequired"
	ErrorCodeOTPVerificationRequired   util.ErrorCode = "otpVerificationRequired"

	ErrorCodeOTPTokenRequired           util.ErrorCode = "otpTokenRequired"
	ErrorCodeOTPChallengeFailed         util.ErrorCode = "otpChallengeFailed"
	ErrorCodeOTPDeviceNotInteractive    util.ErrorCode = "otpDeviceNotInteractive"
	ErrorCodeOTPInvalidToken            util.ErrorCode = "otpInvalidToken"
	ErrorCodeOTPFailedAttempts          util.ErrorCode = "otpFailedAttempts"
	ErrorCodeOTPVerificationNotAllowed  util.ErrorCode = "otpVerificationNotAllowed"
	ErrorCodeOTPChallengeEmailDuplicate util.ErrorCode = "otpChallengeEmailDuplicate"

	ErrorCodeCSRFFailure util.ErrorCode = "csrfFailure"
)
