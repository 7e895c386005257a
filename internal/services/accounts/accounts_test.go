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

package accounts

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"agola.io/accounts/internal/mail"
	"agola.io/accounts/internal/services/config"
	"agola.io/accounts/internal/sms"
	"agola.io/accounts/internal/testutil"
	"agola.io/accounts/internal/util"
	apierrors "agola.io/accounts/services/accounts/api/errors"
	"agola.io/accounts/services/accounts/api/types"
	"agola.io/accounts/services/accounts/client"
)

const (
	testPassword    = "Xk9!vQ2#pLmw"
	testNewPassword = "Zt7$hRw1qNb"
	testAdminToken  = "admintoken"

	phone01 = "+393331234567"
	phone02 = "+393331234568"
)

const testConfig = `
accounts:
  webExposedURL: "http://accounts.example.com"
  web:
    listenAddress: ":0"
  db:
    type: %s
    connString: %q
  tokenSigning:
    method: hmac
    key: supersecretsigningkey
  cookieSigning:
    key: supersecretcookiekey
  unsecureCookies: true
  adminToken: %s
  phoneRegion: IT
  sms:
    type: log
  mail:
    type: log
    from: webmaster@localhost
`

type testServer struct {
	s          *Accounts
	ts         *httptest.Server
	verifier   *sms.LogVerifier
	mailSender *mail.LogSender
}

func setupAccounts(t *testing.T) *testServer {
	ctx := context.Background()
	log := testutil.NewLogger(t)
	dir := t.TempDir()

	dbType := testutil.DBType(t)
	_, _, connString := testutil.CreateDB(t, log, ctx, dir)

	c, err := config.ParseData([]byte(fmt.Sprintf(testConfig, dbType, connString, testAdminToken)))
	testutil.NilError(t, err)

	s, err := NewAccounts(ctx, log, c)
	testutil.NilError(t, err)
	t.Cleanup(func() { _ = s.sdb.Close() })

	ts := httptest.NewServer(s.setupDefaultRouter())
	t.Cleanup(ts.Close)

	return &testServer{
		s:          s,
		ts:         ts,
		verifier:   s.smsVerifier.(*sms.LogVerifier),
		mailSender: s.mailSender.(*mail.LogSender),
	}
}

func (ts *testServer) newClient(t *testing.T) *client.Client {
	c := client.NewClient(ts.ts.URL, "")

	_, err := c.FetchCSRFToken(context.Background())
	testutil.NilError(t, err)

	return c
}

func (ts *testServer) newAdminClient() *client.Client {
	return client.NewClient(ts.ts.URL, testAdminToken)
}

// signup creates a user, verifies its phone and logs in.
func (ts *testServer) signup(t *testing.T, c *client.Client, phone, email string) *types.UserResponse {
	ctx := context.Background()

	user, resp, err := c.CreateUser(ctx, &types.CreateUserRequest{
		Phone:     phone,
		Email:     email,
		FirstName: "Mario",
		LastName:  "Rossi",
		Password1: testPassword,
		Password2: testPassword,
	})
	testutil.NilError(t, err)
	assert.Equal(t, resp.StatusCode, http.StatusCreated)
	assert.Equal(t, user.IsActive, false)

	msg, _, err := c.VerifyPhone(ctx, user.ID, &types.VerifyPhoneRequest{Code: ts.verifier.Code(phone)})
	testutil.NilError(t, err)
	assert.Equal(t, msg.Message, "phone number is verified")

	res, _, err := c.Login(ctx, &types.LoginRequest{Phone: phone, Password: testPassword})
	testutil.NilError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	return res.User
}

func (ts *testServer) lastToken(t *testing.T, to string) string {
	m := ts.mailSender.LastMessageTo(to)
	assert.Assert(t, m != nil, "no message sent to %s", to)

	return strings.TrimSpace(m.Body)
}

func assertRemoteError(t *testing.T, err error, kind util.ErrorKind, code string) {
	t.Helper()

	rerr, ok := util.AsRemoteError(err)
	assert.Assert(t, ok, "expected remote error, got: %v", err)
	assert.Equal(t, rerr.Kind, kind)
	assert.Equal(t, rerr.Code, code)
}

func TestAccountLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ts := setupAccounts(t)
	c := ts.newClient(t)

	_, _, err := c.GetCurrentUser(ctx)
	assert.Assert(t, util.RemoteErrorIs(err, util.ErrUnauthorized))

	user := ts.signup(t, c, phone01, "mario@example.com")

	cur, _, err := c.GetCurrentUser(ctx)
	testutil.NilError(t, err)
	assert.DeepEqual(t, cur, user, cmpopts.IgnoreFields(types.UserResponse{}, "LastLogin"))
	assert.Equal(t, cur.IsActive, true)
	assert.Equal(t, cur.EmailVerified, false)

	// email verification required
	_, _, err = c.ChangePassword(ctx, &types.ChangePasswordRequest{OldPassword: testPassword, NewPassword1: testNewPassword, NewPassword2: testNewPassword})
	assertRemoteError(t, err, util.ErrForbidden, string(apierrors.ErrorCodeEmailVerificationRequired))

	devices, _, err := c.GetEmailDevices(ctx)
	testutil.NilError(t, err)
	assert.Assert(t, cmp.Len(devices, 1))
	assert.Equal(t, devices[0].Name, "mario@example.com")

	res, resp, err := c.VerifyEmail(ctx, &types.VerifyOTPRequest{DeviceID: devices[0].ID, Challenge: true})
	testutil.NilError(t, err)
	assert.Equal(t, resp.StatusCode, http.StatusAccepted)
	assert.Assert(t, cmp.Contains(res.ChallengeMessage, "sent to mario@example.com"))

	res, resp, err = c.VerifyEmail(ctx, &types.VerifyOTPRequest{DeviceID: devices[0].ID, Token: ts.lastToken(t, "mario@example.com")})
	testutil.NilError(t, err)
	assert.Equal(t, resp.StatusCode, http.StatusOK)
	assert.Equal(t, res.User.EmailVerified, true)
	assert.Equal(t, res.Device.ID, devices[0].ID)

	updated, _, err := c.UpdateUser(ctx, user.ID, &types.UpdateUserRequest{FirstName: util.Ptr("Luigi")})
	testutil.NilError(t, err)
	assert.Equal(t, updated.FirstName, "Luigi")

	_, err = c.DeleteCurrentUser(ctx, &types.DeleteCurrentUserRequest{Password: "wrongpassword"})
	assertRemoteError(t, err, util.ErrBadRequest, string(apierrors.ErrorCodeIncorrectPassword))

	resp, err = c.DeleteCurrentUser(ctx, &types.DeleteCurrentUserRequest{Password: testPassword})
	testutil.NilError(t, err)
	assert.Equal(t, resp.StatusCode, http.StatusNoContent)

	_, _, err = c.GetCurrentUser(ctx)
	assert.Assert(t, util.RemoteErrorIs(err, util.ErrUnauthorized))
}

func TestDeleteRequiresOTPSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ts := setupAccounts(t)
	c := ts.newClient(t)

	ts.signup(t, c, phone01, "mario@example.com")

	devices, _, err := c.GetEmailDevices(ctx)
	testutil.NilError(t, err)
	_, _, err = c.VerifyEmail(ctx, &types.VerifyOTPRequest{DeviceID: devices[0].ID, Challenge: true})
	testutil.NilError(t, err)
	_, _, err = c.VerifyEmail(ctx, &types.VerifyOTPRequest{DeviceID: devices[0].ID, Token: ts.lastToken(t, "mario@example.com")})
	testutil.NilError(t, err)

	// a new session isn't otp verified
	_, err = c.Logout(ctx)
	testutil.NilError(t, err)
	_, _, err = c.Login(ctx, &types.LoginRequest{Phone: phone01, Password: testPassword})
	testutil.NilError(t, err)

	_, err = c.DeleteCurrentUser(ctx, &types.DeleteCurrentUserRequest{Password: testPassword})
	assertRemoteError(t, err, util.ErrForbidden, string(apierrors.ErrorCodeOTPVerificationRequired))

	res, _, err := c.VerifyOTP(ctx, &types.VerifyOTPRequest{Challenge: true})
	assertRemoteError(t, err, util.ErrBadRequest, string(apierrors.ErrorCodeOTPDeviceNotInteractive))
	assert.Assert(t, res.ChallengeMessage == "")

	_, _, err = c.VerifyOTP(ctx, &types.VerifyOTPRequest{DeviceID: devices[0].ID, Challenge: true})
	testutil.NilError(t, err)
	_, _, err = c.VerifyOTP(ctx, &types.VerifyOTPRequest{Token: ts.lastToken(t, "mario@example.com")})
	testutil.NilError(t, err)

	_, err = c.DeleteCurrentUser(ctx, &types.DeleteCurrentUserRequest{Password: testPassword})
	testutil.NilError(t, err)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ts := setupAccounts(t)
	c := ts.newClient(t)

	user, _, err := c.CreateUser(ctx, &types.CreateUserRequest{
		Phone:     phone01,
		Email:     "mario@example.com",
		FirstName: "Mario",
		LastName:  "Rossi",
		Password1: testPassword,
		Password2: testPassword,
	})
	testutil.NilError(t, err)

	_, _, err = c.Login(ctx, &types.LoginRequest{Phone: phone01, Password: testPassword})
	assertRemoteError(t, err, util.ErrForbidden, string(apierrors.ErrorCodeInactiveAccount))

	msg, _, err := c.ResendPhoneToken(ctx, user.ID)
	testutil.NilError(t, err)
	assert.Assert(t, cmp.Contains(msg.Message, phone01))

	_, _, err = c.VerifyPhone(ctx, user.ID, &types.VerifyPhoneRequest{Code: ts.verifier.Code(phone01)})
	testutil.NilError(t, err)

	_, _, err = c.Login(ctx, &types.LoginRequest{Phone: phone01, Password: "wrongpassword"})
	assertRemoteError(t, err, util.ErrUnauthorized, string(apierrors.ErrorCodeInvalidLogin))

	_, _, err = c.Login(ctx, &types.LoginRequest{Phone: phone02, Password: testPassword})
	assertRemoteError(t, err, util.ErrUnauthorized, string(apierrors.ErrorCodeInvalidLogin))

	res, _, err := c.Login(ctx, &types.LoginRequest{Phone: phone01, Password: testPassword})
	testutil.NilError(t, err)
	assert.Assert(t, res.User.LastLogin != nil)

	_, err = c.Logout(ctx)
	testutil.NilError(t, err)

	_, _, err = c.GetCurrentUser(ctx)
	assert.Assert(t, util.RemoteErrorIs(err, util.ErrUnauthorized))
}

func TestCSRF(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ts := setupAccounts(t)

	// no csrf token fetched
	c := client.NewClient(ts.ts.URL, "")
	_, _, err := c.Login(ctx, &types.LoginRequest{Phone: phone01, Password: testPassword})
	assertRemoteError(t, err, util.ErrForbidden, string(apierrors.ErrorCodeCSRFFailure))

	_, err = c.FetchCSRFToken(ctx)
	testutil.NilError(t, err)
	assert.Assert(t, c.CSRFToken() != "")

	_, _, err = c.Login(ctx, &types.LoginRequest{Phone: phone01, Password: testPassword})
	assertRemoteError(t, err, util.ErrUnauthorized, string(apierrors.ErrorCodeInvalidLogin))
}

var resetURLRegexp = regexp.MustCompile(`http://accounts\.example\.com/password_reset_confirm/([^/]+)/([^/]+)/`)

func TestPasswordReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ts := setupAccounts(t)
	c := ts.newClient(t)

	ts.signup(t, c, phone01, "mario@example.com")

	// not verified email
	_, _, err := c.ResetPassword(ctx, &types.ResetPasswordRequest{Email: "mario@example.com"})
	assertRemoteError(t, err, util.ErrBadRequest, string(apierrors.ErrorCodeEmailNotVerified))

	devices, _, err := c.GetEmailDevices(ctx)
	testutil.NilError(t, err)
	_, _, err = c.VerifyEmail(ctx, &types.VerifyOTPRequest{DeviceID: devices[0].ID, Challenge: true})
	testutil.NilError(t, err)
	_, _, err = c.VerifyEmail(ctx, &types.VerifyOTPRequest{DeviceID: devices[0].ID, Token: ts.lastToken(t, "mario@example.com")})
	testutil.NilError(t, err)

	_, _, err = c.ResetPassword(ctx, &types.ResetPasswordRequest{Email: "unknown@example.com"})
	assertRemoteError(t, err, util.ErrBadRequest, string(apierrors.ErrorCodeNoAccountForEmail))

	msg, resp, err := c.ResetPassword(ctx, &types.ResetPasswordRequest{Email: "mario@example.com"})
	testutil.NilError(t, err)
	assert.Equal(t, resp.StatusCode, http.StatusAccepted)
	assert.Equal(t, msg.Message, "password reset email sent")

	// the reset email is sent by the delivery worker
	err = ts.s.emailDeliveriesHandler(ctx)
	testutil.NilError(t, err)

	m := ts.mailSender.LastMessageTo("mario@example.com")
	assert.Assert(t, m != nil)
	matches := resetURLRegexp.FindStringSubmatch(m.Body)
	assert.Assert(t, cmp.Len(matches, 3))

	confirm := &types.ConfirmPasswordResetRequest{
		UIDB64:       matches[1],
		Token:        matches[2],
		NewPassword1: testNewPassword,
		NewPassword2: testNewPassword,
	}
	_, _, err = c.ConfirmPasswordReset(ctx, confirm)
	testutil.NilError(t, err)

	// the previous session was invalidated by the password change
	_, _, err = c.GetCurrentUser(ctx)
	assert.Assert(t, util.RemoteErrorIs(err, util.ErrUnauthorized))

	// single use link
	_, _, err = c.ConfirmPasswordReset(ctx, confirm)
	assertRemoteError(t, err, util.ErrBadRequest, string(apierrors.ErrorCodeInvalidPasswordResetLink))

	_, _, err = c.Login(ctx, &types.LoginRequest{Phone: phone01, Password: testNewPassword})
	testutil.NilError(t, err)
}

func TestAdminUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ts := setupAccounts(t)
	ac := ts.newAdminClient()

	_, _, err := client.NewClient(ts.ts.URL, "wrongtoken").AdminGetUsers(ctx, "", 0, true)
	assert.Assert(t, util.RemoteErrorIs(err, util.ErrUnauthorized))

	_, _, err = client.NewClient(ts.ts.URL, "").AdminGetUsers(ctx, "", 0, true)
	assert.Assert(t, util.RemoteErrorIs(err, util.ErrUnauthorized))

	for i, phone := range []string{phone01, phone02} {
		user, resp, err := ac.AdminCreateUser(ctx, &types.AdminCreateUserRequest{
			Phone:     phone,
			Email:     fmt.Sprintf("user%02d@example.com", i),
			FirstName: "Mario",
			LastName:  "Rossi",
			Password:  testPassword,
		})
		testutil.NilError(t, err)
		assert.Equal(t, resp.StatusCode, http.StatusCreated)
		assert.Equal(t, user.IsActive, true)
	}

	users, resp, err := ac.AdminGetUsers(ctx, "", 1, true)
	testutil.NilError(t, err)
	assert.Assert(t, cmp.Len(users, 1))
	assert.Equal(t, users[0].Phone, phone01)
	assert.Equal(t, resp.HasMore, true)

	users, resp, err = ac.AdminGetUsers(ctx, users[0].Phone, 1, true)
	testutil.NilError(t, err)
	assert.Assert(t, cmp.Len(users, 1))
	assert.Equal(t, users[0].Phone, phone02)
	assert.Equal(t, resp.HasMore, false)

	// admin created users can log in
	c := ts.newClient(t)
	_, _, err = c.Login(ctx, &types.LoginRequest{Phone: phone01, Password: testPassword})
	testutil.NilError(t, err)

	_, err = ac.AdminDeleteUser(ctx, phone01)
	testutil.NilError(t, err)

	_, err = ac.AdminDeleteUser(ctx, phone01)
	assert.Assert(t, util.RemoteErrorIs(err, util.ErrNotExist))

	users, _, err = ac.AdminGetUsers(ctx, "", 0, true)
	testutil.NilError(t, err)
	assert.Assert(t, cmp.Len(users, 1))
	assert.Equal(t, users[0].Phone, phone02)
}
