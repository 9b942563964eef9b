package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/training-center/pkg/client"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "GET an API path with the stored session and print the body",
	Long: `GET an API path relative to --server, for example:
  tcctl get /users/me
A 401 triggers one token refresh and replay. A 403 is reported as is.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, closeFn, err := openClient(cmd, client.ScopeStudent)
		if err != nil {
			return err
		}
		defer closeFn()

		url := strings.TrimRight(serverURL, "/") + "/" + strings.TrimLeft(args[0], "/")
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if _, err := io.Copy(cmd.OutOrStdout(), resp.Body); err != nil {
			return err
		}
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("server answered %s", resp.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
