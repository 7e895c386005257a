// Copyright 2022 Sorint.lab
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied
// See the License for the specific language governing permissions and
// limitations under the License.

package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/services/accounts/action"
	"agola.io/accounts/internal/services/accounts/common"
	scommon "agola.io/accounts/internal/services/common"
	"agola.io/accounts/internal/util"
)

type SkipCSRFOnTokenAuth struct {
	log  zerolog.Logger
	next http.Handler
}

func NewSkipCSRFOnTokenAuth(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &SkipCSRFOnTokenAuth{log, h}
	}
}

func (h *SkipCSRFOnTokenAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// skip csrf test if the request was a successful token auth
	ctx := r.Context()
	tokenAuth := ctx.Value(common.ContextKeyTokenAuth)
	if tokenAuth != nil && tokenAuth.(bool) {
		r = csrf.UnsafeSkipCheck(r)
	}

	h.next.ServeHTTP(w, r)
}

type SetCSRFHeader struct {
	log  zerolog.Logger
	next http.Handler
}

func NewSetCSRFHeader(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &SetCSRFHeader{log, h}
	}
}

func (h *SetCSRFHeader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Csrf-Token", csrf.Token(r))

	h.next.ServeHTTP(w, r)
}

type checkerResponse struct {
	ctxValues map[any]any
	cookies   []*http.Cookie

	// authErr is the auth error. Checkers should populate this instead of returning an error when it's a checker error and not an internal error
	// when authErr is nil the authentication was successful
	// when authErr is not nil the authentication will continue with other checkers (unless failAuth is true)
	authErr error

	// failAuth will fail the authentication without continuing with other checkers
	failAuth bool
}

type checker interface {
	Name() string

	DoAuth(context.Context, *http.Request) (*checkerResponse, error)
}

type AuthChecker struct {
	log zerolog.Logger
	ah  *action.ActionHandler

	next http.Handler

	required bool

	checkers []checker
}

type AuthCheckerOption func(*AuthChecker)

func WithRequired(required bool) AuthCheckerOption {
	return func(c *AuthChecker) {
		c.required = required
	}
}

func WithAdminTokenChecker(adminToken string) AuthCheckerOption {
	return func(c *AuthChecker) {
		checker := &adminTokenChecker{
			log:        c.log,
			adminToken: adminToken,
		}

		c.checkers = append(c.checkers, checker)
	}
}

func WithCookieChecker(sc *scommon.CookieSigningData, unsecureCookies bool) AuthCheckerOption {
	return func(c *AuthChecker) {
		checker := &cookieChecker{
			log:             c.log,
			ah:              c.ah,
			sc:              sc,
			unsecureCookies: unsecureCookies,
		}

		c.checkers = append(c.checkers, checker)
	}
}

func NewAuthChecker(log zerolog.Logger, ah *action.ActionHandler, opts ...AuthCheckerOption) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		c := &AuthChecker{
			log:  log,
			ah:   ah,
			next: h,
		}

		for _, option := range opts {
			option(c)
		}

		return c
	}
}

func (h *AuthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.do(ctx, w, r)
	if util.HTTPError(w, err) {
		h.log.Err(err).Send()
	}
}

func (h *AuthChecker) do(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	for _, checker := range h.checkers {
		res, err := checker.DoAuth(ctx, r)
		if err != nil {
			return errors.WithStack(err)
		}

		hasAuth, err := h.checkAuthResponse(checker.Name(), res)
		if err != nil {
			return errors.WithStack(err)
		}

		if hasAuth {
			for key, value := range res.ctxValues {
				ctx = context.WithValue(ctx, key, value)
			}

			for _, cookie := range res.cookies {
				http.SetCookie(w, cookie)
			}

			h.doNext(ctx, w, r)
			return nil
		}
	}

	if h.required {
		return util.NewAPIError(util.ErrUnauthorized, errors.Errorf("auth required but no auth data"))
	}

	h.doNext(ctx, w, r)
	return nil
}

func (h *AuthChecker) checkAuthResponse(name string, res *checkerResponse) (bool, error) {
	var hasAuth bool

	if res.failAuth {
		if res.authErr != nil {
			return false, util.NewAPIError(util.ErrUnauthorized, errors.Wrapf(res.authErr, "checker %s: auth failed", name))
		}
		return false, util.NewAPIError(util.ErrUnauthorized, errors.Errorf("checker %s: auth failed (no auth err reported by checker)", name))
	}

	if res.authErr != nil {
		h.log.Trace().Err(res.authErr).Msgf("checker %s: auth err: %+v", name, res.authErr)
	} else {
		hasAuth = true
	}

	return hasAuth, nil
}

func (h *AuthChecker) doNext(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	h.next.ServeHTTP(w, r.WithContext(ctx))
}

type adminTokenChecker struct {
	log zerolog.Logger

	adminToken string
}

func (c *adminTokenChecker) Name() string { return "admintoken" }

func (c *adminTokenChecker) DoAuth(ctx context.Context, r *http.Request) (*checkerResponse, error) {
	if c.adminToken == "" {
		return &checkerResponse{authErr: errors.Errorf("admin token not configured")}, nil
	}

	tokenString := common.ExtractToken(r.Header, "Authorization", "Token")
	if tokenString == "" {
		return &checkerResponse{authErr: errors.Errorf("no token provided")}, nil
	}
	if subtle.ConstantTimeCompare([]byte(tokenString), []byte(c.adminToken)) != 1 {
		return &checkerResponse{authErr: errors.Errorf("wrong admin token"), failAuth: true}, nil
	}

	ctxValues := map[any]any{
		common.ContextKeyTokenAuth: true,
		common.ContextKeyUserAdmin: true,
	}

	return &checkerResponse{ctxValues: ctxValues}, nil
}

type cookieChecker struct {
	log zerolog.Logger

	ah *action.ActionHandler

	sc *scommon.CookieSigningData

	unsecureCookies bool
}

func (c *cookieChecker) Name() string { return "cookie" }

func (c *cookieChecker) DoAuth(ctx context.Context, r *http.Request) (*checkerResponse, error) {
	cookieName := common.AuthCookieName(c.unsecureCookies)
	cookie, err := r.Cookie(cookieName)
	if err != nil && !errors.Is(err, http.ErrNoCookie) {
		return nil, errors.WithStack(err)
	}

	secondaryCookieName := common.SecondaryAuthCookieName()
	secondaryCookie, err := r.Cookie(secondaryCookieName)
	if err != nil && !errors.Is(err, http.ErrNoCookie) {
		return nil, errors.WithStack(err)
	}

	var cookieValue common.AuthCookie

	if cookie == nil {
		return &checkerResponse{authErr: errors.Errorf("missing primary cookie")}, nil
	}
	if secondaryCookie == nil {
		return &checkerResponse{authErr: errors.Errorf("missing secondary cookie")}, nil
	}

	if err = c.sc.SecureCookie.Decode(cookieName, cookie.Value, &cookieValue); err != nil {
		return &checkerResponse{authErr: errors.Errorf("failed to decode cookie")}, nil
	}
	userID := cookieValue.Sub

	if userID == "" {
		return &checkerResponse{authErr: errors.Errorf("empty cookie userID")}, nil
	}
	if time.Now().After(cookieValue.Expires) {
		return &checkerResponse{authErr: errors.Errorf("expired cookie")}, nil
	}

	var secondaryCookieValue common.SecondaryAuthCookie
	if err = c.sc.SecureCookie.Decode(secondaryCookieName, secondaryCookie.Value, &secondaryCookieValue); err != nil {
		return &checkerResponse{authErr: errors.Errorf("failed to decode secondary cookie")}, nil
	}

	if secondaryCookieValue.SecondaryToken != cookieValue.SecondaryToken {
		return &checkerResponse{authErr: errors.Errorf("different secondary cookie token")}, nil
	}

	user, otpDeviceID, err := c.ah.GetSessionUser(ctx, userID, cookieValue.OTPDeviceID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if user == nil {
		return &checkerResponse{authErr: errors.Errorf("user doesn't exist"), failAuth: true}, nil
	}
	// sessions created before a password change are not valid
	if !common.CheckSessionHash(c.sc, user.PasswordHash, cookieValue.SessionHash) {
		return &checkerResponse{authErr: errors.Errorf("session password hash doesn't match"), failAuth: true}, nil
	}

	ctxValues := map[any]any{}
	cookies := []*http.Cookie{}

	ctxValues[common.ContextKeyUserID] = user.ID
	ctxValues[common.ContextKeyEmailVerified] = user.EmailVerified
	if otpDeviceID != "" {
		ctxValues[common.ContextKeyOTPDeviceID] = otpDeviceID
	}

	// send renewed cookies when half of the session duration has passed to keep the cookie expiration near to the configured one
	if time.Until(cookieValue.Expires) < c.sc.Duration/2 || otpDeviceID != cookieValue.OTPDeviceID {
		cookie, secondaryCookie, err := common.GenerateAuthCookies(user.ID, otpDeviceID, cookieValue.SessionHash, c.sc, c.unsecureCookies)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		cookies = append(cookies, cookie)
		cookies = append(cookies, secondaryCookie)
	}

	return &checkerResponse{ctxValues: ctxValues, cookies: cookies}, nil
}
