package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bencai/orderwatch/internal/model"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the config file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path in use",
			Run: func(_ *cobra.Command, _ []string) {
				fmt.Println(configPath)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write a default config file to edit",
			RunE: func(_ *cobra.Command, _ []string) error {
				if _, err := os.Stat(configPath); err == nil {
					return fmt.Errorf("%s already exists", configPath)
				}
				cfg, err := model.LoadConfig(configPath)
				if err != nil {
					return err
				}
				if err := model.SaveConfig(configPath, cfg); err != nil {
					return err
				}
				fmt.Println("wrote", configPath)
				return nil
			},
		},
	)
	return cmd
}
