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
	"context"

	"github.com/rs/zerolog/log"
	"github.com/sorintlab/errors"
	"github.com/spf13/cobra"

	"agola.io/accounts/internal/services/accounts"
	"agola.io/accounts/internal/services/config"
)

var cmdDBSetup = &cobra.Command{
	Use:   "dbsetup",
	Short: "create the db schema or migrate it to the current version",
	Run: func(cmd *cobra.Command, args []string) {
		if err := dbSetup(cmd, args); err != nil {
			log.Fatal().Err(err).Send()
		}
	},
}

type dbSetupOptions struct {
	config string
	drop   bool
}

var dbSetupOpts dbSetupOptions

func init() {
	flags := cmdDBSetup.Flags()

	flags.StringVar(&dbSetupOpts.config, "config", "./config.yml", "config file path")
	flags.BoolVar(&dbSetupOpts.drop, "drop", false, "drop all the existing data and recreate an empty db")

	cmdAccounts.AddCommand(cmdDBSetup)
}

func dbSetup(cmd *cobra.Command, args []string) error {
	c, err := config.Parse(dbSetupOpts.config)
	if err != nil {
		return errors.Wrapf(err, "config error")
	}

	if dbSetupOpts.drop {
		if err := accounts.ResetDB(context.Background(), log.Logger, c); err != nil {
			return errors.WithStack(err)
		}
		log.Info().Msgf("db ready")

		return nil
	}

	log.Info().Msgf("setting up db")
	if err := accounts.MigrateDB(context.Background(), log.Logger, c); err != nil {
		return errors.WithStack(err)
	}
	log.Info().Msgf("db ready")

	return nil
}
