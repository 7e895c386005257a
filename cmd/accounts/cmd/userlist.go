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
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sorintlab/errors"
	"github.com/spf13/cobra"

	"agola.io/accounts/services/accounts/api/types"
	"agola.io/accounts/services/accounts/client"
)

var cmdUserList = &cobra.Command{
	Use: "list",
	Run: func(cmd *cobra.Command, args []string) {
		if err := userList(cmd, args); err != nil {
			log.Fatal().Err(err).Send()
		}
	},
	Short: "list",
}

type userListOptions struct {
	limit int
	start string
}

var userListOpts userListOptions

func init() {
	flags := cmdUserList.Flags()

	flags.IntVar(&userListOpts.limit, "limit", 10, "max number of users to show")
	flags.StringVar(&userListOpts.start, "start", "", "starting user phone number (excluded) to fetch")

	cmdUser.AddCommand(cmdUserList)
}

func printUsers(users []*types.UserResponse) {
	for _, user := range users {
		fmt.Printf("%s: Phone: %s, Email: %s, Active: %t\n", user.ID, user.Phone, user.Email, user.IsActive)
	}
}

func userList(cmd *cobra.Command, args []string) error {
	accountsclient := client.NewClient(apiURL, token)

	users, resp, err := accountsclient.AdminGetUsers(context.TODO(), userListOpts.start, userListOpts.limit, true)
	if err != nil {
		return errors.WithStack(err)
	}

	printUsers(users)
	if resp.HasMore {
		fmt.Printf("more users available, start from %q\n", users[len(users)-1].Phone)
	}

	return nil
}
