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

package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/tunshare/tunshare/logconfig"
)

var (
	// FlagLogLevel sets the logging level.
	FlagLogLevel = cli.StringFlag{
		Name: "log-level",
		Usage: func() string {
			allLevels := []string{
				zerolog.TraceLevel.String(),
				zerolog.DebugLevel.String(),
				zerolog.InfoLevel.String(),
				zerolog.WarnLevel.String(),
				zerolog.ErrorLevel.String(),
				zerolog.Disabled.String(),
			}
			return fmt.Sprintf("Set the logging level (%s)", strings.Join(allLevels, "|"))
		}(),
		Value: zerolog.InfoLevel.String(),
	}
	// FlagLogFile enables logging into a daily rolled file.
	FlagLogFile = cli.StringFlag{
		Name:  "log-file",
		Usage: "Write logs into the given file in addition to the console",
	}
)

// RegisterFlagsLogger registers logger CLI flags.
func RegisterFlagsLogger(flags *[]cli.Flag) {
	*flags = append(*flags, &FlagLogLevel, &FlagLogFile)
}

// ParseFlagsLogger parses logger CLI flags from context.
func ParseFlagsLogger(ctx *cli.Context) logconfig.LogOptions {
	Current.ParseStringFlag(ctx, FlagLogLevel)
	Current.ParseStringFlag(ctx, FlagLogFile)

	level, err := zerolog.ParseLevel(GetString(FlagLogLevel))
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse logging level")
		level = zerolog.InfoLevel
	}
	return logconfig.LogOptions{
		LogLevel: level,
		Filepath: GetString(FlagLogFile),
	}
}
