package client

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Register with the directory and chat interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(serverAddr, userName, dataDir)
		if err != nil {
			return err
		}
		return a.run(context.Background(), os.Stdin)
	},
}
