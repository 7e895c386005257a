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

	"agola.io/accounts/services/accounts/api/types"
	"agola.io/accounts/services/accounts/client"
)

var cmdUserCreate = &cobra.Command{
	Use:   "create",
	Short: "create an active user",
	Run: func(cmd *cobra.Command, args []string) {
		if err := userCreate(cmd, args); err != nil {
			log.Fatal().Err(err).Send()
		}
	},
}

type userCreateOptions struct {
	phone     string
	email     string
	username  string
	firstName string
	lastName  string
	password  string
}

var userCreateOpts userCreateOptions

func init() {
	flags := cmdUserCreate.Flags()

	flags.StringVar(&userCreateOpts.phone, "phone", "", "user phone number")
	flags.StringVar(&userCreateOpts.email, "email", "", "user email")
	flags.StringVarP(&userCreateOpts.username, "username", "n", "", "user name")
	flags.StringVar(&userCreateOpts.firstName, "first-name", "", "user first name")
	flags.StringVar(&userCreateOpts.lastName, "last-name", "", "user last name")
	flags.StringVar(&userCreateOpts.password, "password", "", "user password")

	for _, f := range []string{"phone", "email", "password"} {
		if err := cmdUserCreate.MarkFlagRequired(f); err != nil {
			log.Fatal().Err(err).Send()
		}
	}

	cmdUser.AddCommand(cmdUserCreate)
}

func userCreate(cmd *cobra.Command, args []string) error {
	accountsclient := client.NewClient(apiURL, token)

	req := &types.AdminCreateUserRequest{
		Phone:     userCreateOpts.phone,
		Email:     userCreateOpts.email,
		FirstName: userCreateOpts.firstName,
		LastName:  userCreateOpts.lastName,
		Password:  userCreateOpts.password,
	}
	if userCreateOpts.username != "" {
		req.Username = &userCreateOpts.username
	}

	log.Info().Msgf("creating user")
	user, _, err := accountsclient.AdminCreateUser(context.TODO(), req)
	if err != nil {
		return errors.Wrapf(err, "failed to create user")
	}
	log.Info().Msgf("user %q created, ID: %q", user.Phone, user.ID)

	return nil
}
