package main

import (
	"github.com/spf13/cobra"

	"github.com/bencai/orderwatch/internal/scrape"
	"github.com/bencai/orderwatch/internal/server"
	"github.com/bencai/orderwatch/internal/store"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			log := newLogger()
			scraper := scrape.New(scrape.DialIMAP, log)

			// History is best-effort: the API still works without it.
			var runs server.RunStore
			if st, err := store.NewSQLiteStore(cfg.Store.Path); err != nil {
				log.Warn("run history disabled", "path", cfg.Store.Path, "error", err.Error())
			} else {
				defer st.Close()
				runs = st
			}

			return server.New(cfg, scraper, runs, log).Run()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
