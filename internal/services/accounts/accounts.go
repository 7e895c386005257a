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

package accounts

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/csrf"
	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/sorintlab/errors"

	"agola.io/accounts/internal/mail"
	"agola.io/accounts/internal/services/accounts/action"
	"agola.io/accounts/internal/services/accounts/api"
	"agola.io/accounts/internal/services/accounts/common"
	"agola.io/accounts/internal/services/accounts/db"
	"agola.io/accounts/internal/services/accounts/handlers"
	scommon "agola.io/accounts/internal/services/common"
	"agola.io/accounts/internal/services/config"
	serrors "agola.io/accounts/internal/services/errors"
	"agola.io/accounts/internal/sms"
	"agola.io/accounts/internal/sqlg/lock"
	"agola.io/accounts/internal/sqlg/manager"
	"agola.io/accounts/internal/sqlg/sql"
	"agola.io/accounts/internal/util"
)

const (
	apiPrefix = "/api/v1"

	accountsHasMoreHeader = "X-Accounts-HasMore"
	csrfHeader            = "X-Csrf-Token"
)

type Accounts struct {
	log zerolog.Logger
	c   *config.Accounts

	sdb *sql.DB
	d   *db.DB
	lf  lock.LockFactory

	smsVerifier sms.Verifier
	mailSender  mail.Sender

	sd *scommon.TokenSigningData
	sc *scommon.CookieSigningData

	ah *action.ActionHandler

	emailDeliveryRetryDelay time.Duration
}

func NewAccounts(ctx context.Context, log zerolog.Logger, gc *config.Config) (*Accounts, error) {
	c := &gc.Accounts

	if c.Debug {
		log = log.Level(zerolog.DebugLevel)
	}

	sdb, d, lf, err := newDB(log, c)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	dbm := manager.NewDBManager(log, d, lf)
	if err := scommon.SetupDB(ctx, log, dbm); err != nil {
		return nil, errors.Wrap(err, "failed to setup db")
	}

	sd, err := scommon.NewTokenSigningData(&scommon.TokenSigningConfig{
		Duration:       c.TokenSigning.Duration,
		Method:         c.TokenSigning.Method,
		Key:            c.TokenSigning.Key,
		PrivateKeyPath: c.TokenSigning.PrivateKeyPath,
		PublicKeyPath:  c.TokenSigning.PublicKeyPath,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create token signing data")
	}

	sc := scommon.NewCookieSigningData(&scommon.CookieSigningConfig{
		Duration: c.CookieSigning.Duration,
		Key:      c.CookieSigning.Key,
	})

	smsVerifier, err := newSMSVerifier(log, &c.SMS)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	mailSender, err := newMailSender(log, &c.Mail)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	otpBody := c.OTP.EmailBodyTemplate
	if c.OTP.EmailBodyTemplatePath != "" {
		data, err := os.ReadFile(c.OTP.EmailBodyTemplatePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read otp email body template")
		}
		otpBody = string(data)
	}
	templates, err := mail.NewTemplates(otpBody)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	otpConfig := action.OTPConfig{
		TokenValidity:  c.OTP.EmailTokenValidity,
		ThrottleFactor: c.OTP.EmailThrottleFactor,
		EmailSubject:   c.OTP.EmailSubject,
		EmailSender:    c.OTP.EmailSender,
	}

	ah := action.NewActionHandler(log, d, smsVerifier, mailSender, templates, sd, otpConfig, c.WebExposedURL, c.PhoneRegion, c.Mail.From)

	return &Accounts{
		log:         log,
		c:           c,
		sdb:         sdb,
		d:           d,
		lf:          lf,
		smsVerifier: smsVerifier,
		mailSender:  mailSender,
		sd:          sd,
		sc:          sc,
		ah:          ah,

		emailDeliveryRetryDelay: emailDeliveryDelay,
	}, nil
}

func newDB(log zerolog.Logger, c *config.Accounts) (*sql.DB, *db.DB, lock.LockFactory, error) {
	sdb, err := sql.NewDB(c.DB.Type, c.DB.ConnString)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "new db error")
	}

	d, err := db.NewDB(log, sdb)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "new db error")
	}

	var lf lock.LockFactory
	switch c.DB.Type {
	case sql.Sqlite3:
		ll := lock.NewLocalLocks()
		lf = lock.NewLocalLockFactory(ll)
	case sql.Postgres:
		lf = lock.NewPGLockFactory(sdb)
	default:
		return nil, nil, nil, errors.Errorf("unknown type %q", c.DB.Type)
	}

	return sdb, d, lf, nil
}

// MigrateDB creates the db schema or migrates it to the current version.
func MigrateDB(ctx context.Context, log zerolog.Logger, gc *config.Config) error {
	sdb, d, lf, err := newDB(log, &gc.Accounts)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sdb.Close()

	dbm := manager.NewDBManager(log, d, lf)

	return errors.WithStack(scommon.MigrateDB(ctx, log, dbm))
}

// ResetDB removes all the accounts data and recreates the db schema.
func ResetDB(ctx context.Context, log zerolog.Logger, gc *config.Config) error {
	sdb, d, lf, err := newDB(log, &gc.Accounts)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sdb.Close()

	dbm := manager.NewDBManager(log, d, lf)

	return errors.WithStack(scommon.ResetDB(ctx, log, dbm))
}

func newSMSVerifier(log zerolog.Logger, c *config.SMS) (sms.Verifier, error) {
	switch c.Type {
	case config.SMSTypeTwilio:
		return sms.NewTwilioVerifier(log, c.AccountSID, c.AuthToken, c.ServiceSID), nil
	case config.SMSTypeLog:
		return sms.NewLogVerifier(log), nil
	}

	return nil, errors.Errorf("unknown sms type %q", c.Type)
}

func newMailSender(log zerolog.Logger, c *config.Mail) (mail.Sender, error) {
	switch c.Type {
	case config.MailTypeSMTP:
		s, err := mail.NewSMTPSender(log, &mail.SMTPConfig{
			Host:      c.Host,
			Port:      c.Port,
			Username:  c.Username,
			Password:  c.Password,
			TLSPolicy: mail.TLSPolicy(c.TLSPolicy),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create smtp sender")
		}
		return s, nil
	case config.MailTypeLog:
		return mail.NewLogSender(log), nil
	}

	return nil, errors.Errorf("unknown mail type %q", c.Type)
}

// csrfProtect returns the csrf middleware. The csrf key is derived from the
// cookie signing key.
func (s *Accounts) csrfProtect() func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte(s.c.CookieSigning.Key))

	trustedOrigins := []string{}
	for _, o := range append([]string{s.c.WebExposedURL}, s.c.Web.AllowedOrigins...) {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		trustedOrigins = append(trustedOrigins, u.Host)
	}

	protect := csrf.Protect(key[:],
		csrf.Secure(!s.c.UnsecureCookies),
		csrf.Path("/"),
		csrf.CookieName(common.CSRFCookieName(s.c.UnsecureCookies)),
		csrf.RequestHeader(csrfHeader),
		csrf.TrustedOrigins(trustedOrigins),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := util.NewAPIError(util.ErrForbidden, csrf.FailureReason(r), serrors.CSRFFailure())
			s.log.Debug().Err(err).Msg("csrf check failed")
			util.HTTPError(w, err)
		})),
	)

	if !s.c.UnsecureCookies {
		return protect
	}

	// over plain http the csrf referer checks must be disabled
	return func(h http.Handler) http.Handler {
		ph := protect(h)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ph.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Accounts) setupDefaultRouter() http.Handler {
	unsecureCookies := s.c.UnsecureCookies

	csrfHandler := api.NewCSRFHandler(s.log)

	createUserHandler := api.NewCreateUserHandler(s.log, s.ah)
	resendPhoneTokenHandler := api.NewResendPhoneTokenHandler(s.log, s.ah)
	verifyPhoneHandler := api.NewVerifyPhoneHandler(s.log, s.ah)
	userHandler := api.NewUserHandler(s.log, s.ah)
	updateUserHandler := api.NewUpdateUserHandler(s.log, s.ah)
	currentUserHandler := api.NewCurrentUserHandler(s.log, s.ah)
	changePhoneHandler := api.NewChangePhoneHandler(s.log, s.ah)
	deleteCurrentUserHandler := api.NewDeleteCurrentUserHandler(s.log, s.ah, unsecureCookies)

	loginHandler := api.NewLoginHandler(s.log, s.ah, s.sc, unsecureCookies)
	logoutHandler := api.NewLogoutHandler(s.log, unsecureCookies)
	changePasswordHandler := api.NewChangePasswordHandler(s.log, s.ah, s.sc, unsecureCookies)
	resetPasswordHandler := api.NewResetPasswordHandler(s.log, s.ah)
	confirmPasswordResetHandler := api.NewConfirmPasswordResetHandler(s.log, s.ah)

	emailDevicesHandler := api.NewEmailDevicesHandler(s.log, s.ah)
	verifyOTPHandler := api.NewVerifyOTPHandler(s.log, s.ah, s.sc, unsecureCookies)
	changeEmailHandler := api.NewChangeEmailHandler(s.log, s.ah, s.sc, unsecureCookies)

	adminUsersHandler := api.NewAdminUsersHandler(s.log, s.ah)
	adminCreateUserHandler := api.NewAdminCreateUserHandler(s.log, s.ah)
	adminDeleteUserHandler := api.NewAdminDeleteUserHandler(s.log, s.ah)

	csrfProtect := s.csrfProtect()
	skipCSRFOnTokenAuth := handlers.NewSkipCSRFOnTokenAuth(s.log)
	setCSRFHeader := handlers.NewSetCSRFHeader(s.log)
	emailVerificationRequired := handlers.NewEmailVerificationRequired(s.log)
	otpVerificationRequired := handlers.NewOTPVerificationRequired(s.log)

	authOptional := handlers.NewAuthChecker(s.log, s.ah, handlers.WithCookieChecker(s.sc, unsecureCookies), handlers.WithRequired(false))
	authForced := handlers.NewAuthChecker(s.log, s.ah, handlers.WithCookieChecker(s.sc, unsecureCookies), handlers.WithRequired(true))
	adminAuth := handlers.NewAuthChecker(s.log, s.ah, handlers.WithAdminTokenChecker(s.c.AdminToken), handlers.WithRequired(true))

	authOptionalHandler := func(h http.Handler) http.Handler {
		return chain(h, authOptional, skipCSRFOnTokenAuth, csrfProtect, setCSRFHeader)
	}
	authForcedHandler := func(h http.Handler) http.Handler {
		return chain(h, authForced, skipCSRFOnTokenAuth, csrfProtect, setCSRFHeader)
	}
	emailVerifiedHandler := func(h http.Handler) http.Handler {
		return chain(h, authForced, skipCSRFOnTokenAuth, csrfProtect, setCSRFHeader, emailVerificationRequired)
	}
	otpVerifiedHandler := func(h http.Handler) http.Handler {
		return chain(h, authForced, skipCSRFOnTokenAuth, csrfProtect, setCSRFHeader, emailVerificationRequired, otpVerificationRequired)
	}
	adminHandler := func(h http.Handler) http.Handler {
		return chain(h, adminAuth, skipCSRFOnTokenAuth, csrfProtect)
	}

	router := mux.NewRouter()
	apirouter := router.PathPrefix(apiPrefix).Subrouter().UseEncodedPath()

	apirouter.Handle("/csrf", authOptionalHandler(csrfHandler)).Methods("GET")

	apirouter.Handle("/users", authOptionalHandler(createUserHandler)).Methods("POST")
	apirouter.Handle("/users/{userid}/phone/token", authOptionalHandler(resendPhoneTokenHandler)).Methods("POST")
	apirouter.Handle("/users/{userid}/phone/verify", authOptionalHandler(verifyPhoneHandler)).Methods("POST")
	apirouter.Handle("/users/{userid}", authForcedHandler(userHandler)).Methods("GET")
	apirouter.Handle("/users/{userid}", authForcedHandler(updateUserHandler)).Methods("PUT")

	apirouter.Handle("/user", authForcedHandler(currentUserHandler)).Methods("GET")
	apirouter.Handle("/user", otpVerifiedHandler(deleteCurrentUserHandler)).Methods("DELETE")
	apirouter.Handle("/user/phone", authForcedHandler(changePhoneHandler)).Methods("PUT")
	apirouter.Handle("/user/password", emailVerifiedHandler(changePasswordHandler)).Methods("PUT")
	apirouter.Handle("/user/emaildevices", authForcedHandler(emailDevicesHandler)).Methods("GET")
	apirouter.Handle("/user/email/verify", authForcedHandler(verifyOTPHandler)).Methods("POST")
	apirouter.Handle("/user/otp/verify", authForcedHandler(verifyOTPHandler)).Methods("POST")
	apirouter.Handle("/user/email", emailVerifiedHandler(changeEmailHandler)).Methods("PUT")

	apirouter.Handle("/auth/login", authOptionalHandler(loginHandler)).Methods("POST")
	apirouter.Handle("/auth/logout", authOptionalHandler(logoutHandler)).Methods("POST")

	apirouter.Handle("/password/reset", authOptionalHandler(resetPasswordHandler)).Methods("POST")
	apirouter.Handle("/password/reset/confirm", authOptionalHandler(confirmPasswordResetHandler)).Methods("POST")

	apirouter.Handle("/admin/users", adminHandler(adminUsersHandler)).Methods("GET")
	apirouter.Handle("/admin/users", adminHandler(adminCreateUserHandler)).Methods("POST")
	apirouter.Handle("/admin/users/{userref}", adminHandler(adminDeleteUserHandler)).Methods("DELETE")

	corsHandler := ghandlers.CORS(
		ghandlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE"}),
		ghandlers.AllowedHeaders([]string{"Accept", "Accept-Encoding", "Content-Type", "Authorization", csrfHeader}),
		ghandlers.ExposedHeaders([]string{csrfHeader, accountsHasMoreHeader}),
		ghandlers.AllowedOrigins(s.c.Web.AllowedOrigins),
		ghandlers.AllowCredentials(),
	)

	mainrouter := mux.NewRouter()
	mainrouter.PathPrefix("/").Handler(corsHandler(router))

	// Return a bad request when it doesn't match any route
	mainrouter.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadRequest) })

	return mainrouter
}

func (s *Accounts) Run(ctx context.Context) error {
	go s.EmailDeliveriesHandlerLoop(ctx)

	mainrouter := s.setupDefaultRouter()

	var tlsConfig *tls.Config
	if s.c.Web.TLS {
		var err error
		tlsConfig, err = util.NewTLSConfig(s.c.Web.TLSCertFile, s.c.Web.TLSKeyFile, "", false)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	httpServer := http.Server{
		Addr:      s.c.Web.ListenAddress,
		Handler:   mainrouter,
		TLSConfig: tlsConfig,
	}

	lerrCh := make(chan error, 1)
	go func() {
		if tlsConfig != nil {
			lerrCh <- httpServer.ListenAndServeTLS("", "")
			return
		}
		lerrCh <- httpServer.ListenAndServe()
	}()

	s.log.Info().Msgf("accounts listening on %s", s.c.Web.ListenAddress)

	select {
	case <-ctx.Done():
		s.log.Info().Msgf("accounts service exiting")
		httpServer.Close()
	case err := <-lerrCh:
		if err != nil {
			s.log.Err(err).Msgf("http server listen error")
			return errors.WithStack(err)
		}
	}

	return errors.WithStack(s.sdb.Close())
}
