package cli

import (
	"github.com/spf13/cobra"

	"github.com/reqforge/reqforge/internal/server"
)

// newServeCmd creates the "serve" command running the HTTP service.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP resolution service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			st, err := buildStack(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()

			logger.Info("starting service",
				"index", cfg.Index.URL,
				"store", cfg.Store.Backend,
				"addr", cfg.Server.Addr)

			srv := server.New(st.service, st.cache, logger)
			return srv.ListenAndServe(cmd.Context(), cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
