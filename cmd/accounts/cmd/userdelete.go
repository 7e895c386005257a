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

	"agola.io/accounts/services/accounts/client"
)

var cmdUserDelete = &cobra.Command{
	Use:   "delete",
	Short: "delete a user",
	Run: func(cmd *cobra.Command, args []string) {
		if err := userDelete(cmd, args); err != nil {
			log.Fatal().Err(err).Send()
		}
	},
}

type userDeleteOptions struct {
	userRef string
}

var userDeleteOpts userDeleteOptions

func init() {
	flags := cmdUserDelete.Flags()

	flags.StringVar(&userDeleteOpts.userRef, "user", "", "user id or phone number")

	if err := cmdUserDelete.MarkFlagRequired("user"); err != nil {
		log.Fatal().Err(err).Send()
	}

	cmdUser.AddCommand(cmdUserDelete)
}

func userDelete(cmd *cobra.Command, args []string) error {
	accountsclient := client.NewClient(apiURL, token)

	log.Info().Msgf("deleting user %q", userDeleteOpts.userRef)
	if _, err := accountsclient.AdminDeleteUser(context.TODO(), userDeleteOpts.userRef); err != nil {
		return errors.Wrapf(err, "failed to delete user")
	}
	log.Info().Msgf("user %q deleted", userDeleteOpts.userRef)

	return nil
}
