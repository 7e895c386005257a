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

package action

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/sorintlab/errors"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"agola.io/accounts/internal/mail"
	"agola.io/accounts/internal/services/accounts/db"
	scommon "agola.io/accounts/internal/services/common"
	"agola.io/accounts/internal/sms"
	"agola.io/accounts/internal/sqlg/manager"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/internal/testutil"
	"agola.io/accounts/internal/util"
	apierrors "agola.io/accounts/services/accounts/api/errors"
	"agola.io/accounts/services/accounts/types"
)

const (
	testPassword = "Xk9!vQ2#pLmw"

	phone01 = "+393331234567"
	phone02 = "+393331234568"
	phone03 = "+393331234569"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// failingVerifier returns sendStatus from SendToken, when set, without
// sending any token.
type failingVerifier struct {
	*sms.LogVerifier

	sendStatus sms.Status
	sendErr    error
}

func (v *failingVerifier) SendToken(ctx context.Context, phone string) (sms.Status, error) {
	if v.sendStatus != "" {
		return v.sendStatus, v.sendErr
	}
	return v.LogVerifier.SendToken(ctx, phone)
}

// failingSender fails every send while failing is true.
type failingSender struct {
	*mail.LogSender

	failing bool
}

func (s *failingSender) Send(ctx context.Context, m *mail.Message) error {
	if s.failing {
		return errors.Errorf("smtp server unavailable")
	}
	return s.LogSender.Send(ctx, m)
}

type testEnv struct {
	ah         *ActionHandler
	d          *db.DB
	verifier   *failingVerifier
	mailSender *failingSender
	clock      *testClock
}

func setupActionHandler(t *testing.T) *testEnv {
	ctx := context.Background()
	log := testutil.NewLogger(t)
	dir := t.TempDir()

	sdb, lf, _ := testutil.CreateDB(t, log, ctx, dir)

	d, err := db.NewDB(log, sdb)
	testutil.NilError(t, err)

	dbm := manager.NewDBManager(log, d, lf)
	err = scommon.SetupDB(ctx, log, dbm)
	testutil.NilError(t, err)

	sd, err := scommon.NewTokenSigningData(&scommon.TokenSigningConfig{
		Duration: 72 * time.Hour,
		Method:   "hmac",
		Key:      "supersecretsigningkey",
	})
	testutil.NilError(t, err)

	templates, err := mail.NewTemplates("")
	testutil.NilError(t, err)

	verifier := &failingVerifier{LogVerifier: sms.NewLogVerifier(log)}
	mailSender := &failingSender{LogSender: mail.NewLogSender(log)}

	otpConfig := OTPConfig{
		TokenValidity:  300 * time.Second,
		ThrottleFactor: 1,
		EmailSubject:   "OTP token",
		EmailSender:    "webmaster@localhost",
	}

	ah := NewActionHandler(log, d, verifier, mailSender, templates, sd, otpConfig, "http://accounts.example.com", "IT", "webmaster@localhost")

	clock := &testClock{now: time.Now()}
	ah.SetNowFunc(clock.Now)

	return &testEnv{ah: ah, d: d, verifier: verifier, mailSender: mailSender, clock: clock}
}

func (e *testEnv) createUser(t *testing.T, phone, email string) *types.User {
	ctx := context.Background()

	user, err := e.ah.CreateUser(ctx, &CreateUserRequest{
		Phone:     phone,
		Email:     email,
		FirstName: "Mario",
		LastName:  "Rossi",
		Password1: testPassword,
		Password2: testPassword,
	})
	testutil.NilError(t, err)

	return user
}

// createActiveUser creates a user and verifies its phone number.
func (e *testEnv) createActiveUser(t *testing.T, phone, email string) *types.User {
	ctx := context.Background()

	user := e.createUser(t, phone, email)

	res, err := e.ah.VerifyPhone(ctx, user.ID, e.verifier.Code(phone))
	testutil.NilError(t, err)

	return res.User
}

func (e *testEnv) userDevice(t *testing.T, userID string) *types.EmailDevice {
	devices, err := e.ah.GetUserEmailDevices(context.Background(), userID)
	testutil.NilError(t, err)
	assert.Assert(t, cmp.Len(devices, 1))

	return devices[0]
}

// verifyEmail verifies the user email using the user email device.
func (e *testEnv) verifyEmail(t *testing.T, user *types.User) {
	ctx := context.Background()

	device := e.userDevice(t, user.ID)

	_, err := e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Challenge: true})
	testutil.NilError(t, err)

	token := e.mailSender.LastMessageTo(user.Email).Body
	_, err = e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Token: token})
	testutil.NilError(t, err)
}

func (e *testEnv) getUserByPhone(t *testing.T, phone string) *types.User {
	var user *types.User
	err := e.d.Do(context.Background(), func(tx *sql.Tx) error {
		var err error
		user, err = e.d.GetUserByPhone(tx, phone)
		return errors.WithStack(err)
	})
	testutil.NilError(t, err)

	return user
}

func assertErrorCode(t *testing.T, err error, kind util.ErrorKind, code util.ErrorCode) {
	t.Helper()

	assert.Assert(t, err != nil)
	assert.Assert(t, util.APIErrorIs(err, kind), "unexpected error kind: %v", err)
	assert.Assert(t, util.APIErrorHasCode(err, code), "unexpected error code: %v", err)
}

func TestCreateUser(t *testing.T) {
	t.Parallel()

	t.Run("create user", func(t *testing.T) {
		e := setupActionHandler(t)

		user := e.createUser(t, "333 123 4567", "mario@Example.COM")
		assert.Equal(t, user.Phone, phone01)
		assert.Equal(t, user.Email, "mario@example.com")
		assert.Equal(t, user.Gender, types.GenderNone)
		assert.Assert(t, !user.IsActive)
		assert.Assert(t, !user.EmailVerified)
		assert.Assert(t, e.verifier.Code(phone01) != "")
	})

	t.Run("duplicate phone", func(t *testing.T) {
		e := setupActionHandler(t)

		e.createUser(t, phone01, "user01@example.com")

		_, err := e.ah.CreateUser(context.Background(), &CreateUserRequest{
			Phone:     phone01,
			Email:     "user02@example.com",
			Password1: testPassword,
			Password2: testPassword,
		})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodePhoneAlreadyExists)
	})

	t.Run("duplicate email with different case", func(t *testing.T) {
		e := setupActionHandler(t)

		e.createUser(t, phone01, "user01@example.com")

		_, err := e.ah.CreateUser(context.Background(), &CreateUserRequest{
			Phone:     phone02,
			Email:     "USER01@example.com",
			Password1: testPassword,
			Password2: testPassword,
		})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeEmailAlreadyExists)
	})

	t.Run("password mismatch", func(t *testing.T) {
		e := setupActionHandler(t)

		_, err := e.ah.CreateUser(context.Background(), &CreateUserRequest{
			Phone:     phone01,
			Email:     "user01@example.com",
			Password1: testPassword,
			Password2: testPassword + "x",
		})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodePasswordMismatch)
		assert.Equal(t, e.verifier.Code(phone01), "")
	})

	t.Run("weak password", func(t *testing.T) {
		e := setupActionHandler(t)

		_, err := e.ah.CreateUser(context.Background(), &CreateUserRequest{
			Phone:     phone01,
			Email:     "user01@example.com",
			Password1: "12345678",
			Password2: "12345678",
		})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeInvalidPassword)
	})

	t.Run("invalid phone", func(t *testing.T) {
		e := setupActionHandler(t)

		_, err := e.ah.CreateUser(context.Background(), &CreateUserRequest{
			Phone:     "+391",
			Email:     "user01@example.com",
			Password1: testPassword,
			Password2: testPassword,
		})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeInvalidPhone)
	})

	smsFailures := []struct {
		name   string
		status sms.Status
		err    error
	}{
		{name: "sms provider error", status: sms.StatusError, err: errors.Errorf("provider unavailable")},
		{name: "sms verification canceled", status: sms.StatusCanceled},
	}
	for _, tt := range smsFailures {
		t.Run(tt.name+" doesn't save the user", func(t *testing.T) {
			e := setupActionHandler(t)
			e.verifier.sendStatus = tt.status
			e.verifier.sendErr = tt.err

			_, err := e.ah.CreateUser(context.Background(), &CreateUserRequest{
				Phone:     phone01,
				Email:     "user01@example.com",
				Password1: testPassword,
				Password2: testPassword,
			})
			assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeSMSSendFailed)
			assert.Assert(t, e.getUserByPhone(t, phone01) == nil)

			// the same data can be used once the provider works again
			e.verifier.sendStatus = ""
			e.verifier.sendErr = nil
			user := e.createUser(t, phone01, "user01@example.com")
			assert.Equal(t, user.Phone, phone01)
		})
	}
}

func TestVerifyPhone(t *testing.T) {
	t.Parallel()

	t.Run("activate user", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createUser(t, phone01, "user01@example.com")

		_, err := e.ah.VerifyPhone(ctx, user.ID, "wrong")
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeSMSCheckFailed)

		res, err := e.ah.VerifyPhone(ctx, user.ID, e.verifier.Code(phone01))
		testutil.NilError(t, err)
		assert.Assert(t, !res.PhoneChanged)
		assert.Assert(t, res.User.IsActive)

		device := e.userDevice(t, user.ID)
		assert.Equal(t, device.Name, "user01@example.com")
		assert.Assert(t, device.Confirmed)
	})

	t.Run("email device created once", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")

		_, err := e.ah.ResendPhoneToken(ctx, user.ID)
		testutil.NilError(t, err)
		_, err = e.ah.VerifyPhone(ctx, user.ID, e.verifier.Code(phone01))
		testutil.NilError(t, err)

		e.userDevice(t, user.ID)
	})

	t.Run("resend token", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createUser(t, phone01, "user01@example.com")

		msg, err := e.ah.ResendPhoneToken(ctx, user.ID)
		testutil.NilError(t, err)
		assert.Equal(t, msg, "sent another confirmation code to "+phone01)
	})

	t.Run("unknown user", func(t *testing.T) {
		e := setupActionHandler(t)

		_, err := e.ah.ResendPhoneToken(context.Background(), "unknown")
		assertErrorCode(t, err, util.ErrNotExist, apierrors.ErrorCodeUserDoesNotExist)
	})
}

func TestChangePhone(t *testing.T) {
	t.Parallel()

	e := setupActionHandler(t)
	ctx := context.Background()

	user := e.createActiveUser(t, phone01, "user01@example.com")
	e.createActiveUser(t, phone02, "user02@example.com")

	_, err := e.ah.ChangePhone(ctx, user.ID, phone01)
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodePhoneUnchanged)

	_, err = e.ah.ChangePhone(ctx, user.ID, phone02)
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodePhoneAlreadyExists)

	user, err = e.ah.ChangePhone(ctx, user.ID, phone03)
	testutil.NilError(t, err)
	assert.Equal(t, user.Phone, phone01)
	assert.Equal(t, util.Deref(user.PhoneTemp), phone03)

	res, err := e.ah.VerifyPhone(ctx, user.ID, e.verifier.Code(phone03))
	testutil.NilError(t, err)
	assert.Assert(t, res.PhoneChanged)
	assert.Equal(t, res.User.Phone, phone03)
	assert.Assert(t, res.User.PhoneTemp == nil)

	_, err = e.ah.Login(ctx, phone03, testPassword)
	testutil.NilError(t, err)
}

func TestChangePhoneSMSFailure(t *testing.T) {
	t.Parallel()

	e := setupActionHandler(t)
	ctx := context.Background()

	user := e.createActiveUser(t, phone01, "user01@example.com")

	e.verifier.sendStatus = sms.StatusError
	e.verifier.sendErr = errors.Errorf("provider unavailable")

	_, err := e.ah.ChangePhone(ctx, user.ID, phone02)
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeSMSSendFailed)

	u := e.getUserByPhone(t, phone01)
	assert.Assert(t, u != nil)
	assert.Assert(t, u.PhoneTemp == nil)
	assert.Assert(t, e.verifier.Code(phone02) == "")
}

func TestLogin(t *testing.T) {
	t.Parallel()

	e := setupActionHandler(t)
	ctx := context.Background()

	user := e.createUser(t, phone01, "user01@example.com")

	// the inactive account is reported also with a wrong password
	_, err := e.ah.Login(ctx, phone01, "wrongpassword")
	assertErrorCode(t, err, util.ErrForbidden, apierrors.ErrorCodeInactiveAccount)

	_, err = e.ah.VerifyPhone(ctx, user.ID, e.verifier.Code(phone01))
	testutil.NilError(t, err)

	_, err = e.ah.Login(ctx, phone01, "wrongpassword")
	assertErrorCode(t, err, util.ErrUnauthorized, apierrors.ErrorCodeInvalidLogin)

	_, err = e.ah.Login(ctx, phone02, testPassword)
	assertErrorCode(t, err, util.ErrUnauthorized, apierrors.ErrorCodeInvalidLogin)

	u, err := e.ah.Login(ctx, phone01, testPassword)
	testutil.NilError(t, err)
	assert.Assert(t, u.LastLogin != nil)
	assert.Assert(t, u.LastLogin.Equal(e.clock.Now()))
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()

	e := setupActionHandler(t)
	ctx := context.Background()

	user01 := e.createActiveUser(t, phone01, "user01@example.com")
	user02 := e.createActiveUser(t, phone02, "user02@example.com")

	_, err := e.ah.UpdateUser(ctx, &UpdateUserRequest{UserID: user02.ID, CurUserID: user01.ID, FirstName: util.Ptr("Luigi")})
	assertErrorCode(t, err, util.ErrForbidden, apierrors.ErrorCodeUserNotOwner)

	_, err = e.ah.UpdateUser(ctx, &UpdateUserRequest{UserID: user01.ID, CurUserID: user01.ID, Gender: util.Ptr("other")})
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeInvalidGender)

	user, err := e.ah.UpdateUser(ctx, &UpdateUserRequest{UserID: user01.ID, CurUserID: user01.ID, FirstName: util.Ptr("Luigi"), Gender: util.Ptr("female")})
	testutil.NilError(t, err)
	assert.Equal(t, user.FirstName, "Luigi")
	assert.Equal(t, user.LastName, "Rossi")
	assert.Equal(t, user.Gender, types.GenderFemale)
}

func TestVerifyOTP(t *testing.T) {
	t.Parallel()

	t.Run("challenge and verify", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")
		device := e.userDevice(t, user.ID)

		res, err := e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Challenge: true})
		testutil.NilError(t, err)
		assert.Equal(t, res.ChallengeMessage, "OTP Token: sent to user01@example.com")

		m := e.mailSender.LastMessageTo("user01@example.com")
		assert.Assert(t, m != nil)
		assert.Equal(t, m.Subject, "OTP token")
		assert.Equal(t, m.From, "webmaster@localhost")
		assert.Assert(t, cmp.Len(m.Body, 6))

		res, err = e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Token: m.Body})
		testutil.NilError(t, err)
		assert.Equal(t, res.Device.ID, device.ID)
		assert.Assert(t, res.User.EmailVerified)

		// a token can be used only once
		_, err = e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Token: m.Body})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPInvalidToken)
	})

	t.Run("verify without device", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")
		device := e.userDevice(t, user.ID)

		_, err := e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Challenge: true})
		testutil.NilError(t, err)

		token := e.mailSender.LastMessageTo("user01@example.com").Body
		res, err := e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, Token: token})
		testutil.NilError(t, err)
		assert.Equal(t, res.Device.ID, device.ID)
	})

	t.Run("failed challenge", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")
		device := e.userDevice(t, user.ID)

		_, err := e.ah.ChangeEmail(ctx, &ChangeEmailRequest{UserID: user.ID, DeviceID: device.ID, NewEmail: "new01@example.com", Challenge: true})
		testutil.NilError(t, err)

		e.mailSender.failing = true

		_, err = e.ah.ChangeEmail(ctx, &ChangeEmailRequest{UserID: user.ID, DeviceID: device.ID, NewEmail: "new02@example.com", Challenge: true})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPChallengeFailed)

		device = e.userDevice(t, user.ID)
		assert.Assert(t, device.Email == nil)

		u, err := e.ah.GetUser(ctx, user.ID)
		testutil.NilError(t, err)
		assert.Equal(t, u.Email, "user01@example.com")
		assert.Equal(t, util.Deref(u.EmailTemp), "new01@example.com")
		assert.Assert(t, e.mailSender.LastMessageTo("new02@example.com") == nil)
	})

	t.Run("challenge without device", func(t *testing.T) {
		e := setupActionHandler(t)

		user := e.createActiveUser(t, phone01, "user01@example.com")

		_, err := e.ah.VerifyOTP(context.Background(), &VerifyOTPRequest{UserID: user.ID, Challenge: true})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPDeviceNotInteractive)
	})

	t.Run("token required", func(t *testing.T) {
		e := setupActionHandler(t)

		user := e.createActiveUser(t, phone01, "user01@example.com")
		device := e.userDevice(t, user.ID)

		_, err := e.ah.VerifyOTP(context.Background(), &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPTokenRequired)
	})

	t.Run("throttling", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")
		device := e.userDevice(t, user.ID)

		_, err := e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Challenge: true})
		testutil.NilError(t, err)
		token := e.mailSender.LastMessageTo("user01@example.com").Body

		wrongToken := "000000"
		if token == wrongToken {
			wrongToken = "111111"
		}

		_, err = e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Token: wrongToken})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPInvalidToken)

		// the failure is saved even if the verification failed
		device = e.userDevice(t, user.ID)
		assert.Equal(t, device.ThrottlingFailureCount, 1)

		_, err = e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Token: token})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPFailedAttempts)

		e.clock.Advance(2 * time.Second)

		_, err = e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Token: token})
		testutil.NilError(t, err)

		device = e.userDevice(t, user.ID)
		assert.Equal(t, device.ThrottlingFailureCount, 0)
		assert.Assert(t, device.ThrottlingFailureTimestamp == nil)
	})

	t.Run("expired token", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")
		device := e.userDevice(t, user.ID)

		_, err := e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Challenge: true})
		testutil.NilError(t, err)
		token := e.mailSender.LastMessageTo("user01@example.com").Body

		e.clock.Advance(301 * time.Second)

		_, err = e.ah.VerifyOTP(ctx, &VerifyOTPRequest{UserID: user.ID, DeviceID: device.ID, Token: token})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPInvalidToken)
	})
}

func TestChangeEmail(t *testing.T) {
	t.Parallel()

	t.Run("change email", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")
		e.verifyEmail(t, user)
		device := e.userDevice(t, user.ID)

		res, err := e.ah.ChangeEmail(ctx, &ChangeEmailRequest{UserID: user.ID, DeviceID: device.ID, NewEmail: "new01@example.com", Challenge: true})
		testutil.NilError(t, err)
		assert.Equal(t, res.ChallengeMessage, "OTP Token: sent to new01@example.com")
		assert.Equal(t, res.User.Email, "user01@example.com")
		assert.Equal(t, util.Deref(res.User.EmailTemp), "new01@example.com")

		device = e.userDevice(t, user.ID)
		assert.Assert(t, device.Email == nil)

		token := e.mailSender.LastMessageTo("new01@example.com").Body
		res, err = e.ah.ChangeEmail(ctx, &ChangeEmailRequest{UserID: user.ID, DeviceID: device.ID, NewEmail: "new01@example.com", Token: token})
		testutil.NilError(t, err)
		assert.Equal(t, res.User.Email, "new01@example.com")
		assert.Assert(t, res.User.EmailTemp == nil)
		assert.Assert(t, res.User.EmailVerified)
		assert.Equal(t, res.Device.Name, "new01@example.com")
	})

	t.Run("changed new email sends a new challenge", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")
		device := e.userDevice(t, user.ID)

		_, err := e.ah.ChangeEmail(ctx, &ChangeEmailRequest{UserID: user.ID, DeviceID: device.ID, NewEmail: "new01@example.com", Challenge: true})
		testutil.NilError(t, err)

		res, err := e.ah.ChangeEmail(ctx, &ChangeEmailRequest{UserID: user.ID, DeviceID: device.ID, NewEmail: "new02@example.com", Token: "123456"})
		testutil.NilError(t, err)
		assert.Equal(t, res.ChallengeMessage, "OTP Token: sent to new02@example.com")
		assert.Equal(t, util.Deref(res.User.EmailTemp), "new02@example.com")
		assert.Assert(t, e.mailSender.LastMessageTo("new02@example.com") != nil)
	})

	t.Run("duplicate email", func(t *testing.T) {
		e := setupActionHandler(t)
		ctx := context.Background()

		user := e.createActiveUser(t, phone01, "user01@example.com")
		e.createActiveUser(t, phone02, "user02@example.com")
		device := e.userDevice(t, user.ID)

		_, err := e.ah.ChangeEmail(ctx, &ChangeEmailRequest{UserID: user.ID, DeviceID: device.ID, NewEmail: "User02@example.com", Challenge: true})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPChallengeEmailDuplicate)
	})

	t.Run("challenge without device", func(t *testing.T) {
		e := setupActionHandler(t)

		user := e.createActiveUser(t, phone01, "user01@example.com")

		_, err := e.ah.ChangeEmail(context.Background(), &ChangeEmailRequest{UserID: user.ID, NewEmail: "new01@example.com", Challenge: true})
		assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeOTPChallengeFailed)
	})
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	e := setupActionHandler(t)
	ctx := context.Background()

	user := e.createActiveUser(t, phone01, "user01@example.com")
	newPassword := "Zt7$hRw1qNb"

	_, err := e.ah.ChangePassword(ctx, &ChangePasswordRequest{UserID: user.ID, OldPassword: "wrong", NewPassword1: newPassword, NewPassword2: newPassword})
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeIncorrectOldPassword)

	u, err := e.ah.ChangePassword(ctx, &ChangePasswordRequest{UserID: user.ID, OldPassword: testPassword, NewPassword1: newPassword, NewPassword2: newPassword})
	testutil.NilError(t, err)
	assert.Assert(t, u.PasswordHash != user.PasswordHash)

	_, err = e.ah.Login(ctx, phone01, testPassword)
	assertErrorCode(t, err, util.ErrUnauthorized, apierrors.ErrorCodeInvalidLogin)

	_, err = e.ah.Login(ctx, phone01, newPassword)
	testutil.NilError(t, err)
}

var resetURLRegexp = regexp.MustCompile(`http://accounts\.example\.com/password_reset_confirm/([^/]+)/([^/]+)/`)

func TestPasswordReset(t *testing.T) {
	t.Parallel()

	e := setupActionHandler(t)
	ctx := context.Background()

	user := e.createActiveUser(t, phone01, "user01@example.com")

	err := e.ah.ResetPassword(ctx, "unknown@example.com")
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeNoAccountForEmail)

	err = e.ah.ResetPassword(ctx, "user01@example.com")
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeEmailNotVerified)

	e.verifyEmail(t, user)

	err = e.ah.ResetPassword(ctx, "user01@example.com")
	testutil.NilError(t, err)

	var deliveries []*types.EmailDelivery
	err = e.d.Do(ctx, func(tx *sql.Tx) error {
		var err error
		deliveries, err = e.d.GetEmailDeliveriesAfterSequence(tx, 0, types.DeliveryStatusNotDelivered, 0)
		return err
	})
	testutil.NilError(t, err)
	assert.Assert(t, cmp.Len(deliveries, 1))

	delivery := deliveries[0]
	assert.Equal(t, delivery.Recipient, "user01@example.com")
	assert.Equal(t, delivery.Subject, "Password reset on accounts.example.com")
	assert.Assert(t, cmp.Contains(delivery.Body, phone01))

	matches := resetURLRegexp.FindStringSubmatch(delivery.Body)
	assert.Assert(t, cmp.Len(matches, 3))

	newPassword := "Zt7$hRw1qNb"
	req := &ConfirmPasswordResetRequest{UIDB64: matches[1], Token: matches[2], NewPassword1: newPassword, NewPassword2: newPassword}

	err = e.ah.ConfirmPasswordReset(ctx, &ConfirmPasswordResetRequest{UIDB64: matches[1], Token: "invalid", NewPassword1: newPassword, NewPassword2: newPassword})
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeInvalidPasswordResetLink)

	err = e.ah.ConfirmPasswordReset(ctx, req)
	testutil.NilError(t, err)

	_, err = e.ah.Login(ctx, phone01, newPassword)
	testutil.NilError(t, err)

	// the link cannot be used again
	err = e.ah.ConfirmPasswordReset(ctx, req)
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeInvalidPasswordResetLink)
}

func TestDeleteCurrentUser(t *testing.T) {
	t.Parallel()

	e := setupActionHandler(t)
	ctx := context.Background()

	user := e.createActiveUser(t, phone01, "user01@example.com")

	err := e.ah.DeleteCurrentUser(ctx, user.ID, "wrong")
	assertErrorCode(t, err, util.ErrBadRequest, apierrors.ErrorCodeIncorrectPassword)

	err = e.ah.DeleteCurrentUser(ctx, user.ID, testPassword)
	testutil.NilError(t, err)

	_, err = e.ah.GetUser(ctx, user.ID)
	assertErrorCode(t, err, util.ErrNotExist, apierrors.ErrorCodeUserDoesNotExist)

	err = e.d.Do(ctx, func(tx *sql.Tx) error {
		devices, err := e.d.GetUserEmailDevices(tx, user.ID)
		if err != nil {
			return err
		}
		assert.Assert(t, cmp.Len(devices, 0))
		return nil
	})
	testutil.NilError(t, err)
}

func TestAdminUsers(t *testing.T) {
	t.Parallel()

	e := setupActionHandler(t)
	ctx := context.Background()

	phones := []string{phone03, phone01, phone02}
	for i, phone := range phones {
		user, err := e.ah.AdminCreateUser(ctx, &AdminCreateUserRequest{
			Phone:    phone,
			Email:    "user0" + string(rune('1'+i)) + "@example.com",
			Password: "password",
		})
		testutil.NilError(t, err)
		assert.Assert(t, user.IsActive)
		e.userDevice(t, user.ID)
	}

	res, err := e.ah.GetUsers(ctx, &GetUsersRequest{Limit: 2, Asc: true})
	testutil.NilError(t, err)
	assert.Assert(t, res.HasMore)
	assert.Assert(t, cmp.Len(res.Users, 2))
	assert.Equal(t, res.Users[0].Phone, phone01)
	assert.Equal(t, res.Users[1].Phone, phone02)

	res, err = e.ah.GetUsers(ctx, &GetUsersRequest{StartPhone: phone02, Limit: 2, Asc: true})
	testutil.NilError(t, err)
	assert.Assert(t, !res.HasMore)
	assert.Assert(t, cmp.Len(res.Users, 1))
	assert.Equal(t, res.Users[0].Phone, phone03)

	// delete by phone and by id
	err = e.ah.AdminDeleteUser(ctx, phone01)
	testutil.NilError(t, err)

	user, err := e.ah.Login(ctx, phone02, "password")
	testutil.NilError(t, err)
	err = e.ah.AdminDeleteUser(ctx, user.ID)
	testutil.NilError(t, err)

	err = e.ah.AdminDeleteUser(ctx, phone01)
	assertErrorCode(t, err, util.ErrNotExist, apierrors.ErrorCodeUserDoesNotExist)

	res, err = e.ah.GetUsers(ctx, &GetUsersRequest{Asc: true})
	testutil.NilError(t, err)
	assert.Assert(t, cmp.Len(res.Users, 1))
	assert.Equal(t, res.Users[0].Phone, phone03)
}
