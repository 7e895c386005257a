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

package cmd

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sorintlab/errors"
	"github.com/spf13/cobra"

	"agola.io/accounts/cmd"
)

var (
	// default apiURL
	apiURL = fmt.Sprintf("http://%s:%d", "localhost", 8000)

	token string
)

func init() {
	cw := zerolog.ConsoleWriter{
		Out:                 os.Stderr,
		TimeFormat:          time.RFC3339Nano,
		FormatErrFieldValue: errors.FormatErrFieldValue,
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = log.With().Stack().Caller().Logger().Level(zerolog.InfoLevel).Output(cw)
}

var cmdAccounts = &cobra.Command{
	Use:     "accounts",
	Short:   "accounts",
	Version: cmd.Version,
	// just defined to make --version work
	PersistentPreRun: func(c *cobra.Command, args []string) {
		if err := parseAPIURL(); err != nil {
			log.Fatal().Err(err).Send()
		}

		if accountsOpts.debug {
			log.Logger = log.Level(zerolog.DebugLevel)
		}
		if accountsOpts.detailedErrors {
			zerolog.ErrorMarshalFunc = errors.ErrorMarshalFunc
		}
	},
	Run: func(c *cobra.Command, args []string) {
		if err := c.Help(); err != nil {
			log.Fatal().Err(err).Send()
		}
	},
}

type accountsOptions struct {
	apiURL         string
	debug          bool
	detailedErrors bool
}

var accountsOpts accountsOptions

func parseAPIURL() error {
	if accountsOpts.apiURL != "" {
		apiURL = accountsOpts.apiURL
	}
	if _, err := url.Parse(apiURL); err != nil {
		return errors.Errorf("cannot parse accounts api URL %q: %v", apiURL, err)
	}
	return nil
}

func init() {
	flags := cmdAccounts.PersistentFlags()

	flags.StringVarP(&accountsOpts.apiURL, "api-url", "u", apiURL, "accounts api url")
	flags.StringVar(&token, "token", os.Getenv("ACCOUNTS_ADMIN_TOKEN"), "admin api token")
	flags.BoolVarP(&accountsOpts.debug, "debug", "d", false, "debug")
	flags.BoolVar(&accountsOpts.detailedErrors, "detailed-errors", false, "enabled detailed errors logging")
}

func Execute() {
	if err := cmdAccounts.Execute(); err != nil {
		os.Exit(1)
	}
}
