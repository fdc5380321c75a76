package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSearchCmd creates the "search" command.
func newSearchCmd() *cobra.Command {
	var (
		indexURL string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the package index",
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

			results, err := st.service.Search(cmd.Context(), args[0], limit, indexURL)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no packages found")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%-30s %-12s %s\n", r.Name, r.Version, r.Summary)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&indexURL, "index", "", "package index base URL")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results")
	return cmd
}
