package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bencai/orderwatch/internal/credential"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored mailbox credential",
	}
	cmd.AddCommand(newAuthSetCmd(), newAuthRmCmd())
	return cmd
}

func newAuthSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Store the IMAP password in the system keyring",
		Long: "Store the IMAP password in the system keyring.\n" +
			"For Gmail this should be an app password, not the account password.",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprint(os.Stderr, "Password: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return fmt.Errorf("empty password")
			}
			if err := credential.Set(credential.KeyIMAPPassword, password); err != nil {
				return err
			}
			fmt.Println("stored")
			return nil
		},
	}
}

func newAuthRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm",
		Short: "Remove the stored IMAP password",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := credential.Delete(credential.KeyIMAPPassword); err != nil {
				return err
			}
			fmt.Println("removed")
			return nil
		},
	}
}
