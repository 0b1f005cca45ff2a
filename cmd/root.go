/*
Copyright © 2021 Edmond Cotterell

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	devConfig "github.com/Daskott/snapcron/dev/config"
	"github.com/Daskott/snapcron/shared"
	"github.com/fatih/color"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	ENV_PREFIX       = "SNAPCRON"
	CONFIG_FILE_NAME = ".snapcron.yaml"
)

var (
	cfgFile  string
	isDevEnv bool

	yellow       = color.New(color.FgYellow).SprintFunc()
	red          = color.New(color.FgRed).SprintFunc()
	green        = color.New(color.FgGreen).SprintFunc()
	warningLabel = yellow("Warning:")
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(createRootCmd().Execute())
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "snapcron",
		Short: `snapcron keeps recurring snapshot timers for your projects.

It scans for timers about to fire, makes sure each firing is dispatched once
across every snapcron process sharing a database & lock store, and hands a
snapshot request for the project's pages, profiles & environments to the snapshot service.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/"+CONFIG_FILE_NAME+")")
	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode, with the built-in dev config")

	cmd.AddCommand(
		createServerCmd(),
		createScanCmd(),
		createTimerCmd(),
		createEntityCmd(),
	)

	return cmd
}

// loadConfig reads the config file (or the dev config) & SNAPCRON_* env vars, then validates the result.
// e.g. SNAPCRON_LOCK_BACKEND overrides 'lock.backend'
func loadConfig() (shared.ServerConfig, error) {
	config := viper.New()
	setDefaults(config)

	config.SetEnvPrefix(ENV_PREFIX)
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	config.SetConfigType("yaml")
	switch {
	case isDevEnv:
		if err := config.ReadConfig(strings.NewReader(devConfig.SERVER_YML)); err != nil {
			return shared.ServerConfig{}, fmt.Errorf("error reading dev config: %v", err)
		}
	case cfgFile != "":
		config.SetConfigFile(cfgFile)
		if err := config.ReadInConfig(); err != nil {
			return shared.ServerConfig{}, fmt.Errorf("error reading config file: %v", err)
		}
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return shared.ServerConfig{}, err
		}

		config.SetConfigFile(filepath.Join(home, CONFIG_FILE_NAME))
		err = config.ReadInConfig()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return shared.ServerConfig{}, fmt.Errorf("error reading config file: %v", err)
		}

		if err != nil {
			fmt.Fprintln(os.Stderr, warningLabel, "no config file found, using defaults & env vars")
		}
	}

	serverConfig := shared.ServerConfig{}
	if err := config.Unmarshal(&serverConfig); err != nil {
		return shared.ServerConfig{}, fmt.Errorf("error decoding config: %v", err)
	}

	if err := validator.New().Struct(serverConfig); err != nil {
		return shared.ServerConfig{}, formattedError("invalid config: %v", strings.ReplaceAll(err.Error(), "\n", "; "))
	}

	return serverConfig, nil
}

// setDefaults also registers every key, so each one can be set from the env alone
func setDefaults(config *viper.Viper) {
	defaults := map[string]interface{}{
		"snapcron.cron.timeZone":          "UTC",
		"snapcron.listener.port":          3000,
		"snapcron.scheduler.scanInterval": "10m",
		"snapcron.scheduler.lookahead":    "10m",
		"snapcron.scheduler.leaseTTL":     "11m",
		"snapcron.scheduler.concurrency":  10,

		"database.driver":          "sqlite",
		"database.dsn":             "",
		"database.dir":             "",
		"database.connectAttempts": 5,

		"lock.backend":        "database",
		"lock.redis.addr":     "",
		"lock.redis.password": "",
		"lock.redis.db":       0,

		"snapshot.webhookURL":        "",
		"snapshot.requestsPerSecond": 5,
		"snapshot.burst":             1,
		"snapshot.timeout":           "10s",
		"snapshot.deliveryAttempts":  4,
		"snapshot.workers":           2,

		"google.applicationCredentials":             "",
		"google.storage.bucket":                     "",
		"google.storage.prefix":                     "",
		"google.storage.sqliteBackupSchedule":       "",
		"google.storage.enableSqliteBackupAndSync": false,
	}

	for key, value := range defaults {
		config.SetDefault(key, value)
	}
}

func formattedError(format string, a ...interface{}) error {
	return fmt.Errorf(red(format), a...)
}
