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
	"context"
	"fmt"

	"github.com/Daskott/snapcron/server/models"
	"github.com/spf13/cobra"
)

func createEntityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage the pages, profiles & environments timers snapshot",
	}

	cmd.AddCommand(
		createEntityAddCmd(),
		createEntityToggleCmd("enable", true),
		createEntityToggleCmd("disable", false),
		createEntityRemoveCmd(),
	)

	return cmd
}

func createEntityAddCmd() *cobra.Command {
	var kind string
	var disabled bool
	entity := models.Entity{}

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a page, profile or environment to a project",
		Example: "  snapcron entity add --kind page --project 42 --external-id home --name Home",
		RunE: func(cmd *cobra.Command, args []string) error {
			entityKind, err := parseEntityKind(kind)
			if err != nil {
				return err
			}

			err = openConfiguredStore()
			if err != nil {
				return err
			}

			entity.Enabled = !disabled
			created, err := models.CreateEntity(context.Background(), entityKind, entity)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v %q added with id %v\n", entityKind, created.ExternalID, green(created.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "page, profile or environment")
	cmd.Flags().UintVar(&entity.ProjectID, "project", 0, "id of the project the entity belongs to")
	cmd.Flags().StringVar(&entity.ExternalID, "external-id", "", "id the entity is known by outside snapcron")
	cmd.Flags().StringVar(&entity.Name, "name", "", "display name")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "add the entity disabled")
	cmd.MarkFlagRequired("kind")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("external-id")

	return cmd
}

func createEntityToggleCmd(use string, enabled bool) *cobra.Command {
	var kind string
	var id uint

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%v snapshots of an entity", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityKind, err := parseEntityKind(kind)
			if err != nil {
				return err
			}

			err = openConfiguredStore()
			if err != nil {
				return err
			}

			err = models.SetEntityEnabled(context.Background(), entityKind, id, enabled)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v %v %vd\n", entityKind, id, use)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "page, profile or environment")
	cmd.Flags().UintVar(&id, "id", 0, "id of the entity")
	cmd.MarkFlagRequired("kind")
	cmd.MarkFlagRequired("id")

	return cmd
}

func createEntityRemoveCmd() *cobra.Command {
	var kind string
	var id uint

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove an entity. Timers drop it the next time they fire",
		RunE: func(cmd *cobra.Command, args []string) error {
			entityKind, err := parseEntityKind(kind)
			if err != nil {
				return err
			}

			err = openConfiguredStore()
			if err != nil {
				return err
			}

			err = models.DeleteEntity(context.Background(), entityKind, id)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%v %v removed\n", entityKind, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "page, profile or environment")
	cmd.Flags().UintVar(&id, "id", 0, "id of the entity")
	cmd.MarkFlagRequired("kind")
	cmd.MarkFlagRequired("id")

	return cmd
}

func parseEntityKind(kind string) (models.EntityKind, error) {
	for _, entityKind := range models.EntityKinds {
		if string(entityKind) == kind {
			return entityKind, nil
		}
	}

	return "", fmt.Errorf("%v unknown entity kind %q, expected one of %v", red("Error:"), kind, models.EntityKinds)
}
