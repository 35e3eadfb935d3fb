// cmd/sblite-cli/login.go
package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and persist the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		password := os.Getenv("SBLITE_PASSWORD")
		if password == "" {
			fmt.Print("Password: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password = string(raw)
		}

		session, err := client.Auth.SignIn(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s (expires %s)\n",
			session.User.Email, session.ExpiresAt.Local().Format("15:04:05"))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		if err := client.Auth.SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		session := client.Auth.CurrentSession()
		if session == nil {
			fmt.Println("Not signed in")
			return nil
		}
		fmt.Printf("%s (%s), session expires %s\n",
			session.User.Email, session.User.ID,
			session.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
