package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bencai/orderwatch/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var vendor string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved scrape runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.NewSQLiteStore(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ctx := cmd.Context()

			if vendor != "" {
				run, err := st.LatestRun(ctx, vendor)
				if err != nil {
					return err
				}
				if run == nil {
					fmt.Println("no saved runs for", vendor)
					return nil
				}
				printRun(*run)
				orders, err := st.OrdersForRun(ctx, run.ID)
				if err != nil {
					return err
				}
				for _, o := range orders {
					fmt.Printf("  %-14s %s\n", o.OrderNumber, o.Status)
				}
				return nil
			}

			runs, err := st.Runs(ctx, 20)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no saved runs")
				return nil
			}
			for _, r := range runs {
				printRun(r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "show the latest run and its orders for one vendor")
	return cmd
}

func printRun(r store.ScrapeRun) {
	fmt.Printf("%s  %-8s %-12s %d orders (%d confirmed, %d shipped, %d delivered, %d cancelled)\n",
		r.StartedAt.Format("2006-01-02 15:04"), r.Vendor, r.Folder,
		r.Total, r.Confirmed, r.Shipped, r.Delivered, r.Cancelled)
}
