package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bencai/orderwatch/internal/scrape"
)

func newFoldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List the folders available in the mailbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mbCfg, err := mailboxConfig(cfg)
			if err != nil {
				return err
			}

			scraper := scrape.New(scrape.DialIMAP, newLogger())
			folders, err := scraper.ListFolders(cmd.Context(), mbCfg)
			if err != nil {
				return err
			}
			for _, f := range folders {
				fmt.Println(f)
			}
			return nil
		},
	}
}
