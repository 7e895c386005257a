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
	"time"

	"github.com/gorilla/securecookie"
)

type CookieSigningData struct {
	Duration     time.Duration
	Key          []byte
	SecureCookie *securecookie.SecureCookie
}

type CookieSigningConfig struct {
	Duration time.Duration
	Key      string
}

func NewCookieSigningData(c *CookieSigningConfig) *CookieSigningData {
	sc := securecookie.New([]byte(c.Key), nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// Set the MaxAge of the underlying securecookie.
	sc.MaxAge(int(c.Duration.Seconds()))

	return &CookieSigningData{Duration: c.Duration, Key: []byte(c.Key), SecureCookie: sc}
}
