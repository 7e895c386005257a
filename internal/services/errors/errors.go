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

import (
	"agola.io/accounts/internal/util"
	apierrors "agola.io/accounts/services/accounts/api/errors"
)

func detailedErrorOption(code util.ErrorCode) util.APIErrorOption {
	return util.WithAPIErrorDetailedError(util.NewAPIDetailedError(code))
}

func UserDoesNotExist() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeUserDoesNotExist)
}

func UserNotOwner() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeUserNotOwner)
}

func InvalidPhone() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInvalidPhone)
}

func PhoneAlreadyExists() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodePhoneAlreadyExists)
}

func PhoneUnchanged() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodePhoneUnchanged)
}

func SMSSendFailed() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeSMSSendFailed)
}

func SMSCheckFailed() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeSMSCheckFailed)
}

func InvalidEmail() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInvalidEmail)
}

func EmailAlreadyExists() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeEmailAlreadyExists)
}

func InvalidUserName() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInvalidUserName)
}

func UserNameAlreadyExists() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeUserNameExists)
}

func InvalidName() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInvalidName)
}

func InvalidGender() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInvalidGender)
}

func PasswordMismatch() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodePasswordMismatch)
}

func InvalidPassword() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInvalidPassword)
}

func IncorrectOldPassword() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeIncorrectOldPassword)
}

func IncorrectPassword() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeIncorrectPassword)
}

func InvalidLogin() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInvalidLogin)
}

func InactiveAccount() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInactiveAccount)
}

func NoAccountForEmail() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeNoAccountForEmail)
}

func EmailNotVerified() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeEmailNotVerified)
}

func InvalidPasswordResetLink() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeInvalidPasswordResetLink)
}

func EmailVerificationRequired() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeEmailVerificationRequired)
}

func OTPVerificationRequired() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeOTPVerificationRequired)
}

func OTPTokenRequired() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeOTPTokenRequired)
}

func OTPChallengeFailed() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeOTPChallengeFailed)
}

func OTPDeviceNotInteractive() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeOTPDeviceNotInteractive)
}

func OTPInvalidToken() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeOTPInvalidToken)
}

func OTPFailedAttempts() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeOTPFailedAttempts)
}

func OTPVerificationNotAllowed() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeOTPVerificationNotAllowed)
}

func OTPChallengeEmailDuplicate() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeOTPChallengeEmailDuplicate)
}

func CSRFFailure() util.APIErrorOption {
	return detailedErrorOption(apierrors.ErrorCodeCSRFFailure)
}
