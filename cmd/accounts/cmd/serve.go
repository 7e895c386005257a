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
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/sorintlab/errors"
	"github.com/spf13/cobra"

	"agola.io/accounts/cmd"
	"agola.io/accounts/internal/services/accounts"
	"agola.io/accounts/internal/services/config"
)

var cmdServe = &cobra.Command{
	Use:     "serve",
	Short:   "serve",
	Version: cmd.Version,
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(cmd, args); err != nil {
			log.Fatal().Err(err).Send()
		}
	},
}

type serveOptions struct {
	config string
}

var serveOpts serveOptions

func init() {
	flags := cmdServe.Flags()

	flags.StringVar(&serveOpts.config, "config", "./config.yml", "config file path")

	cmdAccounts.AddCommand(cmdServe)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := config.Parse(serveOpts.config)
	if err != nil {
		return errors.Wrapf(err, "config error")
	}

	s, err := accounts.NewAccounts(ctx, log.Logger, c)
	if err != nil {
		return errors.Wrapf(err, "failed to start accounts service")
	}

	return errors.WithStack(s.Run(ctx))
}
