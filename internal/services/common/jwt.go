// Copyright 2019 Sorint.lab
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
	"crypto/rsa"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sorintlab/errors"
)

type TokenSigningData struct {
	Duration   time.Duration
	Method     jwt.SigningMethod
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	Key        []byte
}

type TokenSigningConfig struct {
	Duration       time.Duration
	Method         string
	Key            string
	PrivateKeyPath string
	PublicKeyPath  string
}

func NewTokenSigningData(c *TokenSigningConfig) (*TokenSigningData, error) {
	sd := &TokenSigningData{Duration: c.Duration}

	switch c.Method {
	case "hmac":
		sd.Method = jwt.SigningMethodHS256
		if c.Key == "" {
			return nil, errors.Errorf("empty token signing key for hmac method")
		}
		sd.Key = []byte(c.Key)
	case "rsa":
		if c.PrivateKeyPath == "" {
			return nil, errors.Errorf("token signing private key file for rsa method not defined")
		}
		if c.PublicKeyPath == "" {
			return nil, errors.Errorf("token signing public key file for rsa method not defined")
		}

		sd.Method = jwt.SigningMethodRS256
		privateKeyData, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading token signing private key")
		}
		sd.PrivateKey, err = jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
		if err != nil {
			return nil, errors.Wrapf(err, "error parsing token signing private key")
		}
		publicKeyData, err := os.ReadFile(c.PublicKeyPath)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading token signing public key")
		}
		sd.PublicKey, err = jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
		if err != nil {
			return nil, errors.Wrapf(err, "error parsing token signing public key")
		}
	case "":
		return nil, errors.Errorf("missing token signing method")
	default:
		return nil, errors.Errorf("unknown token signing method: %q", c.Method)
	}

	return sd, nil
}

func GenerateGenericJWTToken(sd *TokenSigningData, claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(sd.Method, claims)

	var key any
	switch sd.Method {
	case jwt.SigningMethodRS256:
		key = sd.PrivateKey
	case jwt.SigningMethodHS256:
		key = sd.Key
	default:
		return "", errors.Errorf("unsupported signing method %q", sd.Method.Alg())
	}

	tokenString, err := token.SignedString(key)
	return tokenString, errors.WithStack(err)
}

// ParseGenericJWTToken parses and validates (signature and time based
// claims) the token populating the provided claims.
func ParseGenericJWTToken(sd *TokenSigningData, tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method != sd.Method {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		switch sd.Method {
		case jwt.SigningMethodRS256:
			return sd.PublicKey, nil
		case jwt.SigningMethodHS256:
			return sd.Key, nil
		}
		return nil, errors.Errorf("unsupported signing method %q", sd.Method.Alg())
	})
	if err != nil {
		return errors.WithStack(err)
	}
	if !token.Valid {
		return errors.Errorf("invalid token")
	}

	return nil
}
