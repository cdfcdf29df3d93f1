package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/CourtJesterG/conary/internal/version"
)

func newShowCmd() *cobra.Command {
	var flavorStr string
	var strict bool

	cmd := &cobra.Command{
		Use:   "show <name> <version>",
		Short: "Fetch a single trove, verify its digests, and print its manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			v, err := version.Parse(args[1])
			if err != nil {
				return err
			}
			f := version.Flavor{}
			if flavorStr != "" {
				f, err = version.ParseFlavor(flavorStr)
				if err != nil {
					return err
				}
			}

			trv, err := repo.Store.GetTrove(cmd.Context(), args[0], v, f, true)
			if err != nil {
				return err
			}

			if unknown, err := trv.VerifyDigests(cmd.Context(), repo.KeyStore, strict); err != nil {
				return err
			} else if len(unknown) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "signed by unknown keys:", unknown)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"path", "fileId"})
			for _, e := range trv.SortedManifest() {
				t.AppendRow(table.Row{e.Path, fmt.Sprintf("%x", e.FileID[:6])})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&flavorStr, "flavor", "", "exact flavor")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on any unknown-key signature, per spec.md §4.3")
	return cmd
}
