package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bencai/orderwatch/internal/aggregate"
	"github.com/bencai/orderwatch/internal/extract"
	"github.com/bencai/orderwatch/internal/scrape"
	"github.com/bencai/orderwatch/internal/store"
)

func newScrapeCmd() *cobra.Command {
	var (
		vendor  string
		folder  string
		limit   int
		jsonOut string
		save    bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape pass and print the aggregated orders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if vendor == "" {
				vendor = cfg.DefaultVendor
			}
			rules, ok := extract.RulesFor(vendor)
			if !ok {
				return fmt.Errorf("unknown vendor %q (known: %s)", vendor, strings.Join(extract.Vendors(), ", "))
			}
			mbCfg, err := mailboxConfig(cfg)
			if err != nil {
				return err
			}

			if folder == "" {
				folder = "INBOX"
				if vc, ok := cfg.Vendors[vendor]; ok && vc.Folder != "" {
					folder = vc.Folder
				}
			}
			if limit == 0 {
				if vc, ok := cfg.Vendors[vendor]; ok {
					limit = vc.Limit
				}
			}

			scraper := scrape.New(scrape.DialIMAP, newLogger())
			started := time.Now()
			result, err := scraper.Scrape(cmd.Context(), mbCfg, scrape.Options{
				Folder: folder,
				Limit:  limit,
				Sort:   aggregate.SortModeFor(cfg.SortBy),
				Rules:  rules,
			})
			if err != nil {
				return err
			}

			printResult(result)

			if jsonOut != "" {
				if err := writeJSON(jsonOut, result); err != nil {
					return err
				}
				fmt.Println("wrote", jsonOut)
			}
			if save {
				st, err := store.NewSQLiteStore(cfg.Store.Path)
				if err != nil {
					return fmt.Errorf("open store: %w", err)
				}
				defer st.Close()
				run := store.ScrapeRun{
					Vendor:     result.Vendor,
					Folder:     result.Folder,
					Scanned:    result.Scanned,
					Failed:     len(result.FailedUIDs),
					Total:      result.Stats.Total,
					Confirmed:  result.Stats.Confirmed,
					Shipped:    result.Stats.Shipped,
					Delivered:  result.Stats.Delivered,
					Cancelled:  result.Stats.Cancelled,
					StartedAt:  started,
					FinishedAt: time.Now(),
				}
				saved, err := st.SaveRun(cmd.Context(), run, result.Orders)
				if err != nil {
					return fmt.Errorf("save run: %w", err)
				}
				fmt.Println("saved run", saved.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "vendor rule set (default from config)")
	cmd.Flags().StringVar(&folder, "folder", "", "mailbox folder to search (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "only scan the newest N messages (0 = all)")
	cmd.Flags().StringVar(&jsonOut, "json", "", "also write the result to this file as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "persist the run to the local database")
	return cmd
}

func printResult(r *scrape.Result) {
	fmt.Printf("Scanned %d messages in %q (%s)\n", r.Scanned, r.Folder, r.Elapsed.Round(10*time.Millisecond))
	if len(r.FailedUIDs) > 0 {
		fmt.Printf("Skipped %d unreadable messages\n", len(r.FailedUIDs))
	}
	fmt.Printf("Found %d orders: %d confirmed, %d shipped, %d delivered, %d cancelled\n",
		r.Stats.Total, r.Stats.Confirmed, r.Stats.Shipped, r.Stats.Delivered, r.Stats.Cancelled)
	fmt.Println()
	for _, o := range r.Orders {
		line := fmt.Sprintf("  %-14s %-10s", o.OrderNumber, o.Status)
		if !o.OrderDate.IsZero() {
			line += "  " + o.OrderDate.Format("2006-01-02")
		}
		fmt.Println(line)
		for _, p := range o.Products {
			fmt.Println("      -", p)
		}
		if o.TrackingNumber != "" {
			fmt.Println("      tracking:", o.TrackingNumber)
		}
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
