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

package common

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sorintlab/errors"

	scommon "agola.io/accounts/internal/services/common"
)

type ContextKey int

const (
	ContextKeyUserID ContextKey = iota
	ContextKeyUserAdmin
	ContextKeyEmailVerified
	// ContextKeyOTPDeviceID is the email device used to verify the session
	ContextKeyOTPDeviceID

	ContextKeyTokenAuth
)

func CurrentUserID(ctx context.Context) string {
	userIDVal := ctx.Value(ContextKeyUserID)
	if userIDVal == nil {
		return ""
	}
	return userIDVal.(string)
}

func IsUserLogged(ctx context.Context) bool {
	return ctx.Value(ContextKeyUserID) != nil
}

func IsUserAdmin(ctx context.Context) bool {
	isAdmin := false
	isAdminVal := ctx.Value(ContextKeyUserAdmin)
	if isAdminVal != nil {
		isAdmin = isAdminVal.(bool)
	}
	return isAdmin
}

func IsEmailVerified(ctx context.Context) bool {
	v := ctx.Value(ContextKeyEmailVerified)
	if v == nil {
		return false
	}
	return v.(bool)
}

func CurrentOTPDeviceID(ctx context.Context) string {
	v := ctx.Value(ContextKeyOTPDeviceID)
	if v == nil {
		return ""
	}
	return v.(string)
}

// IsOTPVerified reports whether the session was verified with an otp token.
func IsOTPVerified(ctx context.Context) bool {
	return CurrentOTPDeviceID(ctx) != ""
}

func AuthCookieName(unsecure bool) string {
	if unsecure {
		return "session"
	} else {
		return "__Host-session"
	}
}

func SecondaryAuthCookieName() string {
	return "secondarysession"
}

func CSRFCookieName(unsecure bool) string {
	if unsecure {
		return "csrf"
	} else {
		return "__Host-csrf"
	}
}

type AuthCookie struct {
	Sub            string    `json:"sub"`
	SecondaryToken string    `json:"secondaryToken"`
	Expires        time.Time `json:"expires"`

	// OTPDeviceID is set when the session has been verified with an otp
	// token
	OTPDeviceID string `json:"otpDeviceID,omitempty"`
	// SessionHash binds the session to the user password
	SessionHash string `json:"sessionHash"`
}

type SecondaryAuthCookie struct {
	SecondaryToken string `json:"secondaryToken"`
}

// SessionHash returns the session fingerprint of the password hash. Sessions
// created before a password change don't match the new fingerprint.
func SessionHash(sc *scommon.CookieSigningData, passwordHash string) string {
	mac := hmac.New(sha256.New, sc.Key)
	mac.Write([]byte(passwordHash))
	return hex.EncodeToString(mac.Sum(nil))
}

func CheckSessionHash(sc *scommon.CookieSigningData, passwordHash, sessionHash string) bool {
	return hmac.Equal([]byte(SessionHash(sc, passwordHash)), []byte(sessionHash))
}

func GenerateAuthCookies(userID, otpDeviceID, sessionHash string, sc *scommon.CookieSigningData, unsecureCookies bool) (*http.Cookie, *http.Cookie, error) {
	secondaryToken := uuid.Must(uuid.NewV4()).String()

	expire := time.Now().Add(sc.Duration)

	cookieValue := AuthCookie{
		Sub:            userID,
		SecondaryToken: secondaryToken,
		Expires:        expire,
		OTPDeviceID:    otpDeviceID,
		SessionHash:    sessionHash,
	}

	secondaryCookieValue := SecondaryAuthCookie{
		SecondaryToken: secondaryToken,
	}

	cookieName := AuthCookieName(unsecureCookies)
	secondaryCookieName := SecondaryAuthCookieName()

	cookieValueEncoded, err := sc.SecureCookie.Encode(cookieName, cookieValue)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	secondaryCookieValueEncoded, err := sc.SecureCookie.Encode(secondaryCookieName, secondaryCookieValue)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	cookie := &http.Cookie{
		HttpOnly: true,
		Secure:   !unsecureCookies,
		Path:     "/",
		Name:     cookieName,
		SameSite: http.SameSiteStrictMode,
		Value:    cookieValueEncoded,
		MaxAge:   int(sc.Duration.Seconds()),
	}

	secondaryCookie := &http.Cookie{
		Secure:   !unsecureCookies,
		Path:     "/",
		Name:     secondaryCookieName,
		SameSite: http.SameSiteStrictMode,
		Value:    secondaryCookieValueEncoded,
		MaxAge:   int(sc.Duration.Seconds()),
	}

	return cookie, secondaryCookie, nil
}

// DeleteAuthCookies returns the cookies that remove the session cookies from
// the client.
func DeleteAuthCookies(unsecureCookies bool) []*http.Cookie {
	return []*http.Cookie{
		{
			HttpOnly: true,
			Secure:   !unsecureCookies,
			Path:     "/",
			Name:     AuthCookieName(unsecureCookies),
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
		},
		{
			Secure:   !unsecureCookies,
			Path:     "/",
			Name:     SecondaryAuthCookieName(),
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
		},
	}
}

func ExtractToken(hdr http.Header, name, prefix string) string {
	key := http.CanonicalHeaderKey(name)
	v := strings.TrimSpace(hdr.Get(key))
	if v == "" {
		return ""
	}

	pl := len(prefix)
	if len(v) > pl && strings.EqualFold(v[0:pl+1], prefix+" ") {
		return v[pl+1:]
	}
	return ""
}
