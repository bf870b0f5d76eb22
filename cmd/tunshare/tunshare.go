/*
 * Copyright (C) 2026 The "tunshare" Authors.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	configcmd "github.com/tunshare/tunshare/cmd/commands/config"
	"github.com/tunshare/tunshare/cmd/commands/interfaces"
	"github.com/tunshare/tunshare/cmd/commands/license"
	"github.com/tunshare/tunshare/cmd/commands/probe"
	"github.com/tunshare/tunshare/cmd/commands/share"
	"github.com/tunshare/tunshare/cmd/commands/status"
	"github.com/tunshare/tunshare/cmd/commands/version"
	"github.com/tunshare/tunshare/config"
	"github.com/tunshare/tunshare/logconfig"
	"github.com/tunshare/tunshare/metadata"
)

var (
	licenseCopyright = metadata.LicenseCopyright(
		"run command 'license --warranty'",
		"run command 'license --conditions'",
	)
	versionSummary = metadata.VersionAsSummary(licenseCopyright)
	versionCommand = version.NewCommand(versionSummary)
	licenseCommand = license.NewCommand(licenseCopyright)
)

func main() {
	logconfig.Bootstrap()

	err := NewCommand().Run(os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Failed to execute command")
		os.Exit(1)
	}
}

// NewCommand function creates application master command
func NewCommand() *cli.App {
	cli.VersionPrinter = func(ctx *cli.Context) {
		fmt.Fprintln(ctx.App.Writer, versionSummary)
	}

	app := cli.NewApp()
	app.Name = "tunshare"
	app.Usage = "Share a VPN connection of this Mac with devices on a local network"
	app.Authors = []*cli.Author{
		{Name: `The "tunshare" Authors`},
	}
	app.Version = metadata.Version
	app.Copyright = licenseCopyright
	config.RegisterFlagsLogger(&app.Flags)
	config.RegisterFlagsUserConfig(&app.Flags)
	app.Before = func(ctx *cli.Context) error {
		opts := config.ParseFlagsLogger(ctx)
		logconfig.Configure(&opts)
		return config.LoadUserConfig(ctx)
	}
	app.Commands = []*cli.Command{
		share.NewCommand(),
		interfaces.NewCommand(),
		probe.NewCommand(),
		status.NewCommand(),
		configcmd.NewCommand(),
		versionCommand,
		licenseCommand,
	}
	return app
}
