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

package config

import (
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/sorintlab/errors"
	"go.yaml.in/yaml/v4"

	"agola.io/accounts/internal/sqlg/sql"
)

type Config struct {
	Accounts Accounts `yaml:"accounts"`
}

type Accounts struct {
	Debug bool `yaml:"debug"`

	// WebExposedURL is the web interface exposed url i.e. https://accounts.example.com
	// It's used to generate the links sent by email
	WebExposedURL string `yaml:"webExposedURL"`

	DB DB `yaml:"db"`

	Web Web `yaml:"web"`

	// TokenSigning defines the signing of the password reset tokens. Its
	// duration is the password reset link validity.
	TokenSigning  TokenSigning  `yaml:"tokenSigning"`
	CookieSigning CookieSigning `yaml:"cookieSigning"`

	// when true will not set __Host/__Secure and Secure cookies. Should be set only for local development over http
	UnsecureCookies bool `yaml:"unsecureCookies"`

	// AdminToken enables the admin api when not empty
	AdminToken string `yaml:"adminToken" env:"ACCOUNTS_ADMIN_TOKEN"`

	// PhoneRegion is the region used to parse phone numbers provided
	// without the international prefix. When empty only numbers in
	// international format are accepted.
	PhoneRegion string `yaml:"phoneRegion"`

	SMS  SMS  `yaml:"sms"`
	Mail Mail `yaml:"mail"`
	OTP  OTP  `yaml:"otp"`

	EmailDeliveryInterval time.Duration `yaml:"emailDeliveryInterval"`
}

type Web struct {
	// http listen address
	ListenAddress string `yaml:"listenAddress"`

	// use TLS (https)
	TLS bool `yaml:"tls"`
	// TLSCert is the path to the pem formatted server certificate. If the
	// certificate is signed by a certificate authority, the certFile should be
	// the concatenation of the server's certificate, any intermediates, and the
	// CA's certificate.
	TLSCertFile string `yaml:"tlsCertFile"`
	// Server cert private key
	TLSKeyFile string `yaml:"tlsKeyFile"`

	// CORS allowed origins
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type DB struct {
	Type       sql.Type `yaml:"type"`
	ConnString string   `yaml:"connString" env:"ACCOUNTS_DB_CONNSTRING"`
}

type TokenSigning struct {
	// token duration
	Duration time.Duration `yaml:"duration"`
	// signing method: "hmac" or "rsa"
	Method string `yaml:"method"`
	// signing key. Used only with HMAC signing method
	Key string `yaml:"key" env:"ACCOUNTS_TOKEN_SIGNING_KEY"`
	// path to a file containing a pem encoded private key. Used only with RSA signing method
	PrivateKeyPath string `yaml:"privateKeyPath"`
	// path to a file containing a pem encoded public key. Used only with RSA signing method
	PublicKeyPath string `yaml:"publicKeyPath"`
}

type CookieSigning struct {
	Duration time.Duration `yaml:"duration"`
	Key      string        `yaml:"key" env:"ACCOUNTS_COOKIE_SIGNING_KEY"`
}

type SMSType string

const (
	SMSTypeTwilio SMSType = "twilio"
	// SMSTypeLog logs the verification codes instead of sending them
	SMSTypeLog SMSType = "log"
)

type SMS struct {
	Type SMSType `yaml:"type"`

	AccountSID string `yaml:"accountSID" env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `yaml:"authToken" env:"TWILIO_AUTH_TOKEN"`
	ServiceSID string `yaml:"serviceSID" env:"TWILIO_SERVICE_SID"`
}

type MailType string

const (
	MailTypeSMTP MailType = "smtp"
	// MailTypeLog logs the messages instead of sending them
	MailTypeLog MailType = "log"
)

type MailTLSPolicy string

const (
	MailTLSPolicyMandatory     MailTLSPolicy = "mandatory"
	MailTLSPolicyOpportunistic MailTLSPolicy = "opportunistic"
	MailTLSPolicyNone          MailTLSPolicy = "none"
)

type Mail struct {
	Type MailType `yaml:"type"`

	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Username  string        `yaml:"username" env:"SMTP_USERNAME"`
	Password  string        `yaml:"password" env:"SMTP_PASSWORD"`
	TLSPolicy MailTLSPolicy `yaml:"tlsPolicy"`

	// From is the default sender address
	From string `yaml:"from"`
}

// maxEmailThrottleFactor is one day
const maxEmailThrottleFactor = 24 * 60 * 60

type OTP struct {
	// EmailTokenValidity is the validity of the tokens sent by email
	EmailTokenValidity time.Duration `yaml:"emailTokenValidity"`
	// EmailThrottleFactor is the base delay, in seconds, doubled on every
	// failed verification. 0 disables throttling.
	EmailThrottleFactor int `yaml:"emailThrottleFactor"`

	EmailSubject string `yaml:"emailSubject"`
	// EmailSender defaults to the mail default sender
	EmailSender string `yaml:"emailSender"`
	// EmailBodyTemplate is a go text/template rendered with the .Token field
	EmailBodyTemplate     string `yaml:"emailBodyTemplate"`
	EmailBodyTemplatePath string `yaml:"emailBodyTemplatePath"`
}

var defaultConfig = func() *Config {
	return &Config{
		Accounts: Accounts{
			TokenSigning: TokenSigning{
				// password reset links are valid for three days
				Duration: 72 * time.Hour,
				Method:   "hmac",
			},
			CookieSigning: CookieSigning{
				Duration: 12 * time.Hour,
			},
			SMS: SMS{
				Type: SMSTypeTwilio,
			},
			Mail: Mail{
				Type:      MailTypeSMTP,
				Port:      587,
				TLSPolicy: MailTLSPolicyMandatory,
				From:      "webmaster@localhost",
			},
			OTP: OTP{
				EmailTokenValidity:  300 * time.Second,
				EmailThrottleFactor: 1,
				EmailSubject:        "OTP token",
			},
			EmailDeliveryInterval: 1 * time.Second,
		},
	}
}

// Parse reads the yaml config file, overrides the secrets with the values
// provided in the environment and validates the result.
func Parse(configFile string) (*Config, error) {
	configData, err := os.ReadFile(configFile)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return ParseData(configData)
}

func ParseData(configData []byte) (*Config, error) {
	c := defaultConfig()
	if err := yaml.Unmarshal(configData, c); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := env.Parse(&c.Accounts); err != nil {
		return nil, errors.Wrap(err, "failed to parse config env")
	}

	if err := expandPaths(&c.Accounts); err != nil {
		return nil, errors.WithStack(err)
	}

	if c.Accounts.OTP.EmailSender == "" {
		c.Accounts.OTP.EmailSender = c.Accounts.Mail.From
	}

	return c, Validate(c)
}

func expandPaths(a *Accounts) error {
	for _, p := range []*string{
		&a.Web.TLSCertFile,
		&a.Web.TLSKeyFile,
		&a.TokenSigning.PrivateKeyPath,
		&a.TokenSigning.PublicKeyPath,
		&a.OTP.EmailBodyTemplatePath,
	} {
		if *p == "" {
			continue
		}
		ep, err := homedir.Expand(*p)
		if err != nil {
			return errors.Wrapf(err, "failed to expand path %q", *p)
		}
		*p = ep
	}

	if a.DB.Type == sql.Sqlite3 {
		cs, err := homedir.Expand(a.DB.ConnString)
		if err != nil {
			return errors.Wrapf(err, "failed to expand path %q", a.DB.ConnString)
		}
		a.DB.ConnString = cs
	}

	return nil
}

func validateCookieSigning(s *CookieSigning) error {
	if s.Key == "" {
		return errors.Errorf("empty cookie signing key")
	}
	if s.Duration <= 0 {
		return errors.Errorf("invalid cookie duration %s", s.Duration)
	}

	return nil
}

func validateTokenSigning(s *TokenSigning) error {
	switch s.Method {
	case "hmac":
		if s.Key == "" {
			return errors.Errorf("empty token signing key for hmac method")
		}
	case "rsa":
		if s.PrivateKeyPath == "" {
			return errors.Errorf("token signing private key file for rsa method not defined")
		}
		if s.PublicKeyPath == "" {
			return errors.Errorf("token signing public key file for rsa method not defined")
		}
	default:
		return errors.Errorf("unknown token signing method %q", s.Method)
	}
	if s.Duration <= 0 {
		return errors.Errorf("invalid token duration %s", s.Duration)
	}

	return nil
}

func validateDB(db *DB) error {
	switch db.Type {
	case sql.Sqlite3:
	case sql.Postgres:
	default:
		if db.Type == "" {
			return errors.Errorf("type is not defined")
		}
		return errors.Errorf("unknown type %q", db.Type)
	}

	if db.ConnString == "" {
		return errors.Errorf("db connection string undefined")
	}

	return nil
}

func validateWeb(w *Web) error {
	if w.ListenAddress == "" {
		return errors.Errorf("listen address undefined")
	}

	if w.TLS {
		if w.TLSKeyFile == "" {
			return errors.Errorf("no tls key file specified")
		}
		if w.TLSCertFile == "" {
			return errors.Errorf("no tls cert file specified")
		}
	}

	return nil
}

func validateSMS(s *SMS) error {
	switch s.Type {
	case SMSTypeTwilio:
		if s.AccountSID == "" || s.AuthToken == "" || s.ServiceSID == "" {
			return errors.Errorf("twilio account sid, auth token and service sid must be defined")
		}
	case SMSTypeLog:
	default:
		return errors.Errorf("unknown sms type %q", s.Type)
	}

	return nil
}

func validateMail(m *Mail) error {
	switch m.Type {
	case MailTypeSMTP:
		if m.Host == "" {
			return errors.Errorf("smtp host undefined")
		}
		if m.Port <= 0 {
			return errors.Errorf("invalid smtp port %d", m.Port)
		}
		switch m.TLSPolicy {
		case MailTLSPolicyMandatory, MailTLSPolicyOpportunistic, MailTLSPolicyNone:
		default:
			return errors.Errorf("unknown smtp tls policy %q", m.TLSPolicy)
		}
	case MailTypeLog:
	default:
		return errors.Errorf("unknown mail type %q", m.Type)
	}
	if m.From == "" {
		return errors.Errorf("mail from address undefined")
	}

	return nil
}

func validateOTP(o *OTP) error {
	if o.EmailTokenValidity <= 0 {
		return errors.Errorf("invalid email token validity %s", o.EmailTokenValidity)
	}
	if o.EmailThrottleFactor < 0 || o.EmailThrottleFactor > maxEmailThrottleFactor {
		return errors.Errorf("invalid email throttle factor %d", o.EmailThrottleFactor)
	}
	if o.EmailBodyTemplate != "" && o.EmailBodyTemplatePath != "" {
		return errors.Errorf("only one of emailBodyTemplate and emailBodyTemplatePath can be defined")
	}

	return nil
}

func Validate(c *Config) error {
	a := &c.Accounts

	if a.WebExposedURL == "" {
		return errors.Errorf("accounts webExposedURL is empty")
	}
	if _, err := url.Parse(a.WebExposedURL); err != nil {
		return errors.Wrapf(err, "accounts webExposedURL is invalid")
	}
	if err := validateWeb(&a.Web); err != nil {
		return errors.Wrapf(err, "accounts web configuration error")
	}
	if err := validateDB(&a.DB); err != nil {
		return errors.Wrapf(err, "accounts db configuration error")
	}
	if err := validateTokenSigning(&a.TokenSigning); err != nil {
		return errors.Wrapf(err, "accounts token signing configuration error")
	}
	if err := validateCookieSigning(&a.CookieSigning); err != nil {
		return errors.Wrapf(err, "accounts cookie signing configuration error")
	}
	if err := validateSMS(&a.SMS); err != nil {
		return errors.Wrapf(err, "accounts sms configuration error")
	}
	if err := validateMail(&a.Mail); err != nil {
		return errors.Wrapf(err, "accounts mail configuration error")
	}
	if err := validateOTP(&a.OTP); err != nil {
		return errors.Wrapf(err, "accounts otp configuration error")
	}
	if a.EmailDeliveryInterval <= 0 {
		return errors.Errorf("accounts invalid email delivery interval %s", a.EmailDeliveryInterval)
	}

	return nil
}
