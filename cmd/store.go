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
	"github.com/Daskott/snapcron/server"
	"github.com/Daskott/snapcron/server/models"
	"github.com/Daskott/snapcron/shared"
)

// openStore migrates & opens the configured database for one-off commands
func openStore(config shared.ServerConfig) error {
	if config.Database.Dir == "" && config.Database.Driver != "postgres" {
		config.Database.Dir = server.DataDirectory(isDevEnv)
	}

	return models.AutoMigrate(config.Database)
}

func openConfiguredStore() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	return openStore(config)
}
