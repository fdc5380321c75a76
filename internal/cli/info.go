package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newInfoCmd creates the "info" command showing one package's metadata.
func newInfoCmd() *cobra.Command {
	var (
		indexURL    string
		allVersions bool
	)

	cmd := &cobra.Command{
		Use:   "info <package>",
		Short: "Show metadata and versions for one package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := buildStack(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()

			pkg, err := st.service.PackageDetail(cmd.Context(), args[0], indexURL)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s\n", pkg.Name, pkg.LatestVersion)
			if pkg.Summary != "" {
				fmt.Println(pkg.Summary)
			}
			if pkg.Author != "" {
				fmt.Println("author:  " + pkg.Author)
			}
			if pkg.License != "" {
				fmt.Println("license: " + pkg.License)
			}
			if pkg.HomePage != "" {
				fmt.Println("home:    " + pkg.HomePage)
			}
			if pkg.RequiresPython != "" {
				fmt.Println("python:  " + pkg.RequiresPython)
			}
			if len(pkg.Dependencies) > 0 {
				var deps []string
				for _, d := range pkg.Dependencies {
					s := d.Name + d.Constraint
					if d.Optional {
						s += " (optional)"
					}
					deps = append(deps, s)
				}
				fmt.Println("depends: " + strings.Join(deps, ", "))
			}

			if allVersions {
				fmt.Println("versions:")
				for _, rel := range pkg.SortedReleases(true) {
					line := "  " + rel.Version
					if rel.Yanked {
						line += " (yanked)"
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&indexURL, "index", "", "package index base URL")
	cmd.Flags().BoolVar(&allVersions, "versions", false, "list every published version")
	return cmd
}
