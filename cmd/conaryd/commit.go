package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CourtJesterG/conary/internal/changeset"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// troveDescriptor is the small YAML shape this demonstration CLI accepts
// for `commit`: enough to build and commit an absolute changeset for one
// new trove without a full build system behind it.
type troveDescriptor struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Flavor  string `yaml:"flavor"`
	Files   []struct {
		Path    string `yaml:"path"`
		Content string `yaml:"content"`
	} `yaml:"files"`
}

func newCommitCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "commit <descriptor.yaml>",
		Short: "Build an absolute changeset from a trove descriptor and commit it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var d troveDescriptor
			if err := yaml.Unmarshal(raw, &d); err != nil {
				return err
			}

			v, err := version.Parse(d.Version)
			if err != nil {
				return err
			}
			f := version.Flavor{}
			if d.Flavor != "" {
				f, err = version.ParseFlavor(d.Flavor)
				if err != nil {
					return err
				}
			}

			trv := trove.New(d.Name, v, f)
			filesByID := map[trove.FileID][]byte{}
			for _, fd := range d.Files {
				stream := changeset.FileStream{ContentsInfo: []byte(fd.Content)}
				fileID := stream.ID()
				var pathID trove.PathID
				id := uuid.New()
				copy(pathID[:], id[:])
				if err := trv.AddFile(trove.ManifestEntry{
					PathID:  pathID,
					Path:    fd.Path,
					FileID:  fileID,
					Version: v,
				}); err != nil {
					return err
				}
				filesByID[fileID] = []byte(fd.Content)
			}

			cs := changeset.New()
			cs.Troves = append(cs.Troves, changeset.Diff(nil, trv, nil))
			for id, content := range filesByID {
				if err := cs.PutContent(changeset.ContentKey{FileID: id}, content); err != nil {
					return err
				}
			}

			result, err := repo.Store.CommitChangeset(cmd.Context(), cs, role)
			if err != nil {
				return err
			}
			for _, ref := range result.Committed {
				fmt.Fprintf(cmd.OutOrStdout(), "committed %s=%s[%s]\n", ref.Name, ref.Version, ref.Flavor)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "authenticated role committing this changeset")
	return cmd
}
