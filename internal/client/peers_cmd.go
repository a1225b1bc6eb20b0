package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vkuchat/vkuchat/pkg/directory"
)

func init() {
	rootCmd.AddCommand(peersCmd)
	peersCmd.Flags().String("api", "http://127.0.0.1:8080", "Directory status API base URL")
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List online peers via the directory status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _ := cmd.Flags().GetString("api")

		resp, err := http.Get(api + "/api/v1/peers")
		if err != nil {
			return fmt.Errorf("query directory API: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("directory API returned %s: %s", resp.Status, string(body))
		}

		var peers directory.PeersResponse
		if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
			return fmt.Errorf("decode directory reply: %w", err)
		}

		if peers.Count == 0 {
			fmt.Println("nobody is online")
			return nil
		}

		fmt.Printf("%d online:\n", peers.Count)
		for _, p := range peers.Peers {
			fmt.Printf("  %s (%s:%d)\n", p.Name, p.Host, p.Port)
		}
		return nil
	},
}
