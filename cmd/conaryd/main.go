// Command conaryd is a thin demonstration front-end over the core: it is
// not itself in scope (spec.md §1 names CLI front-ends as an external
// collaborator) but exercises the core's public surface the way a real
// CLI would — load config, open a repository context, run a query or a
// commit, report exit codes per §6.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CourtJesterG/conary/internal/config"
	"github.com/CourtJesterG/conary/internal/repoctx"
)

// Exit codes from spec.md §6.
const (
	exitSuccess             = 0
	exitGenericFailure      = 1
	exitUserInputError      = 2
	exitAuthorizationDenied = 3
	exitNotFound            = 4
	exitLabelConflict       = 5
)

var configPath string

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:           "conaryd",
		Short:         "Reference CLI over the conary trove/changeset store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a repository config YAML file")

	root.AddCommand(newInitCmd(), newFindCmd(), newShowCmd(), newCommitCmd(), newMigrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "conaryd:", err)
		return exitCodeFor(err)
	}
	return exitSuccess
}

func loadConfig() (*config.Repository, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func newLogger() *zap.SugaredLogger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return l.Sugar()
}

func openRepo(ctx context.Context) (*repoctx.Context, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return repoctx.Open(ctx, cfg, noKeyStore{}, nil, newLogger())
}
