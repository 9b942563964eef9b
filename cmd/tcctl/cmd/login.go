package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/training-center/pkg/client"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long:  `Sign in with e-mail and password. The password is read from --password or TCCTL_PASSWORD.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin(cmd, client.ScopeStudent)
	},
}

var adminLoginCmd = &cobra.Command{
	Use:   "admin-login",
	Short: "Sign in through the admin endpoint (pass --admin to later commands)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogin(cmd, client.ScopeAdmin)
	},
}

func runLogin(cmd *cobra.Command, scope client.Scope) error {
	password := loginPassword
	if password == "" {
		password = os.Getenv("TCCTL_PASSWORD")
	}
	if loginEmail == "" || password == "" {
		return errors.New("--email and --password (or TCCTL_PASSWORD) are required")
	}

	c, closeFn, err := openClient(cmd, scope)
	if err != nil {
		return err
	}
	defer closeFn()

	login := c.Login
	if scope == client.ScopeAdmin {
		login = c.AdminLogin
	}

	u, err := login(cmd.Context(), loginEmail, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", u.DisplayName, u.Role)
	return nil
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the stored token against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := openClient(cmd, client.ScopeStudent)
		if err != nil {
			return err
		}
		defer closeFn()

		u, err := c.Verify(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, u)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the user of the stored session without calling the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := openClient(cmd, client.ScopeStudent)
		if err != nil {
			return err
		}
		defer closeFn()

		u, err := c.Session().User()
		if errors.Is(err, client.ErrNoUser) {
			return errors.New("not signed in")
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, u)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the refresh token and forget the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := openClient(cmd, client.ScopeStudent)
		if err != nil {
			return err
		}
		defer closeFn()

		return c.Logout(cmd.Context())
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, adminLoginCmd} {
		c.Flags().StringVar(&loginEmail, "email", "", "account e-mail")
		c.Flags().StringVar(&loginPassword, "password", "", "account password")
	}

	rootCmd.AddCommand(loginCmd, adminLoginCmd, verifyCmd, whoamiCmd, logoutCmd)
}
