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
	"net/http"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	scommon "agola.io/accounts/internal/services/common"
	"agola.io/accounts/internal/testutil"
)

func TestGenerateAuthCookies(t *testing.T) {
	t.Parallel()

	sc := scommon.NewCookieSigningData(&scommon.CookieSigningConfig{Duration: time.Hour, Key: "cookiekey"})
	sessionHash := SessionHash(sc, "passwordhash")

	cookie, secondaryCookie, err := GenerateAuthCookies("userid", "deviceid", sessionHash, sc, true)
	testutil.NilError(t, err)

	assert.Equal(t, cookie.Name, "session")
	assert.Equal(t, secondaryCookie.Name, "secondarysession")
	assert.Equal(t, cookie.MaxAge, 3600)

	var cookieValue AuthCookie
	err = sc.SecureCookie.Decode(cookie.Name, cookie.Value, &cookieValue)
	testutil.NilError(t, err)

	var secondaryCookieValue SecondaryAuthCookie
	err = sc.SecureCookie.Decode(secondaryCookie.Name, secondaryCookie.Value, &secondaryCookieValue)
	testutil.NilError(t, err)

	assert.Equal(t, cookieValue.Sub, "userid")
	assert.Equal(t, cookieValue.OTPDeviceID, "deviceid")
	assert.Equal(t, cookieValue.SecondaryToken, secondaryCookieValue.SecondaryToken)
	assert.Assert(t, CheckSessionHash(sc, "passwordhash", cookieValue.SessionHash))
	assert.Assert(t, !CheckSessionHash(sc, "newpasswordhash", cookieValue.SessionHash))
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	hdr := http.Header{}
	hdr.Set("Authorization", "token admintoken")
	assert.Equal(t, ExtractToken(hdr, "Authorization", "Token"), "admintoken")

	hdr.Set("Authorization", "bearer admintoken")
	assert.Equal(t, ExtractToken(hdr, "Authorization", "Token"), "")
}
