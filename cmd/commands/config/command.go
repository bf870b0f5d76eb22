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
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v2"

	"github.com/tunshare/tunshare/cmd/commands/clio"
	"github.com/tunshare/tunshare/config"
	"github.com/tunshare/tunshare/core/port"
	"github.com/tunshare/tunshare/dns"
)

// CommandName is the name of this command
const CommandName = "config"

// NewCommand function creates config command
func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  CommandName,
		Usage: "Show or change persisted preferences",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the persisted preferences",
				Action: func(ctx *cli.Context) error {
					show(ctx.App.Writer, config.Current.GetUserConfig())
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Persist a preference",
				ArgsUsage: "<key> <value>",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 2 {
						return errors.New("key and value expected")
					}
					key, value := strings.ToLower(ctx.Args().Get(0)), ctx.Args().Get(1)
					parsed, err := parseValue(key, value)
					if err != nil {
						return err
					}
					config.Current.SetUser(key, parsed)
					if err := config.Current.SaveUserConfig(); err != nil {
						return err
					}
					clio.Success(fmt.Sprintf("%s = %v", key, parsed))
					return nil
				},
			},
			{
				Name:      "unset",
				Usage:     "Forget a persisted preference",
				ArgsUsage: "<key>",
				Action: func(ctx *cli.Context) error {
					if ctx.NArg() != 1 {
						return errors.New("key expected")
					}
					key := strings.ToLower(ctx.Args().First())
					if _, ok := settable()[key]; !ok {
						return errors.Errorf("unknown preference %q", key)
					}
					config.Current.RemoveUser(key)
					if err := config.Current.SaveUserConfig(); err != nil {
						return err
					}
					clio.Success(key + " unset")
					return nil
				},
			},
		},
	}
}

// settable returns flags which can be persisted, by name.
func settable() map[string]cli.Flag {
	var flags []cli.Flag
	config.RegisterFlagsShare(&flags)
	config.RegisterFlagsLogger(&flags)

	byName := make(map[string]cli.Flag, len(flags))
	for _, f := range flags {
		byName[f.Names()[0]] = f
	}
	return byName
}

func parseValue(key, value string) (interface{}, error) {
	flag, ok := settable()[key]
	if !ok {
		return nil, errors.Errorf("unknown preference %q", key)
	}

	switch key {
	case config.FlagDNSCustom.Name:
		if _, err := dns.ParseCustom(value); err != nil {
			return nil, err
		}
		return value, nil
	case config.FlagNATPMPPorts.Name:
		if _, err := port.ParseRange(value); err != nil {
			return nil, err
		}
		return value, nil
	}

	switch flag.(type) {
	case *cli.BoolFlag:
		b, err := cast.ToBoolE(value)
		return b, errors.Wrapf(err, "%s expects true or false", key)
	case *cli.DurationFlag:
		d, err := cast.ToDurationE(value)
		if err != nil {
			return nil, errors.Wrapf(err, "%s expects a duration", key)
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

func show(out io.Writer, user map[string]interface{}) {
	flat := map[string]string{}
	squishMap(user, flat)
	if len(flat) == 0 {
		fmt.Fprintln(out, "No preferences saved")
		return
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s = %s\n", k, flat[k])
	}
}

// squishMap flattens nested maps into dotted keys.
func squishMap(src map[string]interface{}, dest map[string]string, path ...string) {
	for k, v := range src {
		keyPath := append(append([]string{}, path...), k)
		if nested, ok := v.(map[string]interface{}); ok {
			squishMap(nested, dest, keyPath...)
			continue
		}
		dest[strings.Join(keyPath, ".")] = cast.ToString(v)
	}
}
