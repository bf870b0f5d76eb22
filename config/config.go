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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/urfave/cli/v2"

	"github.com/tunshare/tunshare/eventbus"
)

// Topic returns event bus topic for the given config key to listen for its updates
func Topic(configKey string) string {
	return "config:" + configKey
}

// Config stores app configuration: default values + user configuration + CLI flags
type Config struct {
	userConfigLocation string
	defaults           map[string]interface{}
	user               map[string]interface{}
	cli                map[string]interface{}
	eventBus           eventbus.Publisher
}

// Current global configuration instance
var Current *Config

func init() {
	Current = NewConfig()
}

// NewConfig creates a new configuration instance
func NewConfig() *Config {
	return &Config{
		defaults: make(map[string]interface{}),
		user:     make(map[string]interface{}),
		cli:      make(map[string]interface{}),
	}
}

func (cfg *Config) userConfigLoaded() bool {
	return cfg.userConfigLocation != ""
}

// EnableEventPublishing enables config event publishing to the event bus
func (cfg *Config) EnableEventPublishing(eb eventbus.Publisher) {
	cfg.eventBus = eb
}

// LoadUserConfig loads and remembers user config location.
// A missing file is not an error, it is created on the first save.
func (cfg *Config) LoadUserConfig(location string) error {
	log.Debug().Msg("Loading user configuration: " + location)
	cfg.userConfigLocation = location
	if _, err := os.Stat(location); os.IsNotExist(err) {
		log.Info().Msg("User configuration does not exist yet: " + location)
		return nil
	}
	if _, err := toml.DecodeFile(cfg.userConfigLocation, &cfg.user); err != nil {
		return errors.Wrap(err, "failed to decode configuration file")
	}
	log.Info().Msgf("User configuration loaded: %v", cfg.user)
	return nil
}

// SaveUserConfig saves user configuration to the file from which it was loaded
func (cfg *Config) SaveUserConfig() error {
	log.Info().Msg("Saving user configuration")
	if !cfg.userConfigLoaded() {
		return errors.New("user configuration cannot be saved, because it must be loaded first")
	}
	var out strings.Builder
	if err := toml.NewEncoder(&out).Encode(cfg.user); err != nil {
		return errors.Wrap(err, "failed to write configuration as toml")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.userConfigLocation), 0700); err != nil {
		return errors.Wrap(err, "failed to create configuration directory")
	}
	if err := os.WriteFile(cfg.userConfigLocation, []byte(out.String()), 0600); err != nil {
		return errors.Wrap(err, "failed to write configuration to file")
	}
	log.Info().Msgf("User configuration written: %v", cfg.user)
	return nil
}

// GetUserConfig returns user configuration
func (cfg *Config) GetUserConfig() map[string]interface{} {
	return cfg.user
}

// SetDefault sets default value for key
func (cfg *Config) SetDefault(key string, value interface{}) {
	cfg.set(&cfg.defaults, key, value)
}

// SetUser sets user configuration value for key
func (cfg *Config) SetUser(key string, value interface{}) {
	if cfg.eventBus != nil {
		cfg.eventBus.Publish(Topic(key), value)
	}
	cfg.set(&cfg.user, key, value)
}

// SetCLI sets value passed via CLI flag for key
func (cfg *Config) SetCLI(key string, value interface{}) {
	cfg.set(&cfg.cli, key, value)
}

// RemoveUser removes user configuration value for key
func (cfg *Config) RemoveUser(key string) {
	cfg.remove(&cfg.user, key)
}

// RemoveCLI removes configured CLI flag value by key
func (cfg *Config) RemoveCLI(key string) {
	cfg.remove(&cfg.cli, key)
}

func (cfg *Config) set(configMap *map[string]interface{}, key string, value interface{}) {
	key = strings.ToLower(key)
	segments := strings.Split(key, ".")

	lastKey := segments[len(segments)-1]
	deepestMap := deepSearch(*configMap, segments[0:len(segments)-1])

	deepestMap[lastKey] = value
}

func (cfg *Config) remove(configMap *map[string]interface{}, key string) {
	key = strings.ToLower(key)
	segments := strings.Split(key, ".")

	lastKey := segments[len(segments)-1]
	deepestMap := deepSearch(*configMap, segments[0:len(segments)-1])

	delete(deepestMap, lastKey)
}

// Get gets stored config value as-is
func (cfg *Config) Get(key string) interface{} {
	segments := strings.Split(strings.ToLower(key), ".")
	if cliValue := cfg.searchMap(cfg.cli, segments); cliValue != nil {
		log.Trace().Msgf("Returning CLI value %v:%v", key, cliValue)
		return cliValue
	}
	if userValue := cfg.searchMap(cfg.user, segments); userValue != nil {
		log.Trace().Msgf("Returning user config value %v:%v", key, userValue)
		return userValue
	}
	defaultValue := cfg.searchMap(cfg.defaults, segments)
	log.Trace().Msgf("Returning default value %v:%v", key, defaultValue)
	return defaultValue
}

// GetInt gets config value as int
func (cfg *Config) GetInt(key string) int {
	return cast.ToInt(cfg.Get(key))
}

// GetString gets config value as string
func (cfg *Config) GetString(key string) string {
	return cast.ToString(cfg.Get(key))
}

// GetBool gets config value as bool
func (cfg *Config) GetBool(key string) bool {
	return cast.ToBool(cfg.Get(key))
}

// GetDuration gets config value as duration
func (cfg *Config) GetDuration(key string) time.Duration {
	return cast.ToDuration(cfg.Get(key))
}

// GetStringSlice gets a comma separated or list config value as []string
func (cfg *Config) GetStringSlice(key string) []string {
	value := cfg.Get(key)
	if s, ok := value.(string); ok {
		return splitList(s)
	}
	return cast.ToStringSlice(value)
}

// ParseBoolFlag parses a cli.BoolFlag from command's context and
// sets default and CLI values to the application configuration.
func (cfg *Config) ParseBoolFlag(ctx *cli.Context, flag cli.BoolFlag) {
	cfg.SetDefault(flag.Name, flag.Value)
	if ctx.IsSet(flag.Name) {
		cfg.SetCLI(flag.Name, ctx.Bool(flag.Name))
	} else {
		cfg.RemoveCLI(flag.Name)
	}
}

// ParseIntFlag parses a cli.IntFlag from command's context and
// sets default and CLI values to the application configuration.
func (cfg *Config) ParseIntFlag(ctx *cli.Context, flag cli.IntFlag) {
	cfg.SetDefault(flag.Name, flag.Value)
	if ctx.IsSet(flag.Name) {
		cfg.SetCLI(flag.Name, ctx.Int(flag.Name))
	} else {
		cfg.RemoveCLI(flag.Name)
	}
}

// ParseStringFlag parses a cli.StringFlag from command's context and
// sets default and CLI values to the application configuration.
func (cfg *Config) ParseStringFlag(ctx *cli.Context, flag cli.StringFlag) {
	cfg.SetDefault(flag.Name, flag.Value)
	if ctx.IsSet(flag.Name) {
		cfg.SetCLI(flag.Name, ctx.String(flag.Name))
	} else {
		cfg.RemoveCLI(flag.Name)
	}
}

// ParseDurationFlag parses a cli.DurationFlag from command's context and
// sets default and CLI values to the application configuration.
func (cfg *Config) ParseDurationFlag(ctx *cli.Context, flag cli.DurationFlag) {
	cfg.SetDefault(flag.Name, flag.Value)
	if ctx.IsSet(flag.Name) {
		cfg.SetCLI(flag.Name, ctx.Duration(flag.Name))
	} else {
		cfg.RemoveCLI(flag.Name)
	}
}

// GetBool returns the value of a bool flag from the current configuration
func GetBool(flag cli.BoolFlag) bool {
	return Current.GetBool(flag.Name)
}

// GetInt returns the value of an int flag from the current configuration
func GetInt(flag cli.IntFlag) int {
	return Current.GetInt(flag.Name)
}

// GetString returns the value of a string flag from the current configuration
func GetString(flag cli.StringFlag) string {
	return Current.GetString(flag.Name)
}

// GetDuration returns the value of a duration flag from the current configuration
func GetDuration(flag cli.DurationFlag) time.Duration {
	return Current.GetDuration(flag.Name)
}

// GetStringSlice returns a comma separated flag value as a slice
func GetStringSlice(flag cli.StringFlag) []string {
	return Current.GetStringSlice(flag.Name)
}

func (cfg *Config) searchMap(sourceMap map[string]interface{}, path []string) interface{} {
	if len(path) == 0 {
		return sourceMap
	}
	next, ok := sourceMap[path[0]]
	if !ok {
		return nil
	}
	if len(path) == 1 {
		return next
	}
	switch next := next.(type) {
	case map[string]interface{}:
		return cfg.searchMap(next, path[1:])
	default:
		return nil
	}
}

// deepSearch scans deep maps, following the key indexes listed in the sequence "path".
// The last value is expected to be another map, and is returned.
func deepSearch(m map[string]interface{}, path []string) map[string]interface{} {
	for _, k := range path {
		m2, ok := m[k]
		if !ok {
			m3 := make(map[string]interface{})
			m[k] = m3
			m = m3
			continue
		}
		m3, ok := m2.(map[string]interface{})
		if !ok {
			m3 = make(map[string]interface{})
			m[k] = m3
		}
		m = m3
	}
	return m
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
