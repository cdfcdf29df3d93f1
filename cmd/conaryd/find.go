package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/CourtJesterG/conary/internal/query"
	"github.com/CourtJesterG/conary/internal/version"
)

func newFindCmd() *cobra.Command {
	var labelStr, flavorStr string
	var versionFilter string
	var flavorFilter string
	var role string

	cmd := &cobra.Command{
		Use:   "find <name> [name...]",
		Short: "Run findTroves against the repository and render the results as a table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			var labelPath []version.Label
			if labelStr != "" {
				lbl, err := version.ParseLabel(labelStr)
				if err != nil {
					return err
				}
				labelPath = []version.Label{lbl}
			}

			searchFlavor := version.Flavor{}
			if flavorStr != "" {
				searchFlavor, err = version.ParseFlavor(flavorStr)
				if err != nil {
					return err
				}
			}

			opts := query.DefaultOptions()
			switch versionFilter {
			case "all":
				opts.VersionFilter = query.VersionAll
			case "leaves":
				opts.VersionFilter = query.VersionLeaves
			default:
				opts.VersionFilter = query.VersionLatest
			}
			switch flavorFilter {
			case "best":
				opts.FlavorFilter = query.FlavorBest
			case "exact":
				opts.FlavorFilter = query.FlavorExact
			case "all":
				opts.FlavorFilter = query.FlavorAll
			default:
				opts.FlavorFilter = query.FlavorAvail
			}

			specs := make([]query.Spec, len(args))
			for i, name := range args {
				specs[i] = query.Spec{Name: name}
			}

			results, err := repo.Query.FindTroves(cmd.Context(), labelPath, specs, searchFlavor, opts, role)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"name", "version", "flavor"})
			for _, spec := range specs {
				for _, ref := range results[spec] {
					t.AppendRow(table.Row{ref.Name, ref.Version.String(), ref.Flavor.String()})
				}
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&labelStr, "label", "", "search label (host@namespace:tag)")
	cmd.Flags().StringVar(&flavorStr, "flavor", "", "search flavor")
	cmd.Flags().StringVar(&versionFilter, "version-filter", "latest", "all|latest|leaves")
	cmd.Flags().StringVar(&flavorFilter, "flavor-filter", "avail", "all|avail|best|exact")
	cmd.Flags().StringVar(&role, "role", "", "authenticated role to filter results by; empty skips access filtering")
	return cmd
}
