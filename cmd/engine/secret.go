package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"jobmatch-engine/internal/secrets"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage mail-feed credentials in the OS keychain",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <username> <imap-host>",
	Short: "Store an IMAP password, read from stdin",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		account := secrets.IMAPAccount(args[0], args[1])
		fmt.Fprintf(os.Stderr, "password for %s: ", account)
		pw, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		if err := secrets.SetIMAPPassword(account, strings.TrimRight(pw, "\r\n")); err != nil {
			return err
		}
		fmt.Println("stored", account)
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <username> <imap-host>",
	Short: "Remove an IMAP password from the keychain",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		account := secrets.IMAPAccount(args[0], args[1])
		if err := secrets.DeleteIMAPPassword(account); err != nil {
			return err
		}
		fmt.Println("deleted", account)
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretDeleteCmd)
}
