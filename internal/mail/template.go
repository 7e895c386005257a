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

package mail

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/sorintlab/errors"
)

const (
	DefaultOTPBodyTemplate = "{{ .Token }}"

	DefaultPasswordResetSubjectTemplate = "Password reset on {{ .SiteName }}"
	DefaultPasswordResetBodyTemplate    = `You're receiving this email because you requested a password reset for your user account at {{ .SiteName }}.

Please go to the following page and choose a new password:
{{ .ResetURL }}

Your phone number, in case you've forgotten: {{ .Phone }}

Thanks for using our site!

The {{ .SiteName }} team
`
)

type OTPData struct {
	Token string
}

type PasswordResetData struct {
	SiteName string
	ResetURL string
	Phone    string
	Email    string
}

type Templates struct {
	otpBody              *template.Template
	passwordResetSubject *template.Template
	passwordResetBody    *template.Template
}

func parseTemplate(name, text string) (*template.Template, error) {
	t, err := template.New(name).Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s template", name)
	}

	return t, nil
}

// NewTemplates parses the mail templates. An empty otpBody uses the default
// template.
func NewTemplates(otpBody string) (*Templates, error) {
	if otpBody == "" {
		otpBody = DefaultOTPBodyTemplate
	}

	t := &Templates{}
	var err error
	if t.otpBody, err = parseTemplate("otp body", otpBody); err != nil {
		return nil, errors.WithStack(err)
	}
	if t.passwordResetSubject, err = parseTemplate("password reset subject", DefaultPasswordResetSubjectTemplate); err != nil {
		return nil, errors.WithStack(err)
	}
	if t.passwordResetBody, err = parseTemplate("password reset body", DefaultPasswordResetBodyTemplate); err != nil {
		return nil, errors.WithStack(err)
	}

	return t, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "failed to execute %s template", t.Name())
	}

	return buf.String(), nil
}

func (t *Templates) OTPBody(data *OTPData) (string, error) {
	return execute(t.otpBody, data)
}

func (t *Templates) PasswordResetSubject(data *PasswordResetData) (string, error) {
	return execute(t.passwordResetSubject, data)
}

func (t *Templates) PasswordResetBody(data *PasswordResetData) (string, error) {
	return execute(t.passwordResetBody, data)
}
