package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reqforge/reqforge/pkg/resolver"
)

// newResolveCmd creates the "resolve" command.
func newResolveCmd() *cobra.Command {
	var (
		indexURL      string
		pythonVersion string
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <spec>...",
		Short: "Resolve a list of requirements and print the dependency tree",
		Example: `  reqforge resolve "flask==2.0.0" click
  reqforge resolve "django[bcrypt]>=4.2,<5.0" --json`,
		Args: cobra.MinimumNArgs(1),
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

			prog := newProgress(logger)
			res, err := st.service.Resolve(cmd.Context(), resolver.Request{
				Requirements:  args,
				IndexURL:      indexURL,
				PythonVersion: pythonVersion,
			})
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Resolved %d packages", len(res.Resolved)))

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(res)
			return nil
		},
	}

	cmd.Flags().StringVar(&indexURL, "index", "", "package index base URL")
	cmd.Flags().StringVar(&pythonVersion, "python", "", "target runtime version")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the full result as JSON")
	return cmd
}

// printResult renders a resolution as text: the flat selections, then the
// dependency trees, then warnings and conflicts.
func printResult(res *resolver.Result) {
	for name, rp := range res.Resolved {
		line := fmt.Sprintf("%s==%s", name, rp.Version)
		if rp.SHA256 != "" {
			line += "  # sha256:" + shortHash(rp.SHA256)
		}
		fmt.Println(line)
	}

	if len(res.Tree) > 0 {
		fmt.Println()
		for _, root := range res.Tree {
			printTree(root, "")
		}
	}
	for _, c := range res.Conflicts {
		fmt.Fprintf(os.Stderr, "conflict: %s requested as %s; selected %s\n",
			c.Name, strings.Join(c.Requested, " and "), c.Selected)
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, "warning: "+w)
	}
}

func printTree(n *resolver.TreeNode, indent string) {
	fmt.Printf("%s%s (%s)\n", indent, n.Name, n.Version)
	for _, c := range n.Children {
		printTree(c, indent+"  ")
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
