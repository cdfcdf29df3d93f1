package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create (or bring up to date) a repository's database and content store",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "repository ready:", repo.Config.DataSourceName)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Open the repository, running any pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// store.Open already runs migration.Migrate before
			// returning, so opening the repository is the whole
			// operation; this command exists to make that step
			// explicit and scriptable rather than implicit in every
			// other command.
			repo, err := openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
			return nil
		},
	}
}
