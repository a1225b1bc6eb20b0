// Package client is the vkuchat command line client: an interactive
// chat session plus one-shot directory queries.
package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vkuchat/vkuchat/pkg/protocol"
)

var (
	serverAddr string
	userName   string
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:   "vkuchat",
	Short: "Peer-to-peer chat over a rendezvous directory",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server",
		fmt.Sprintf("127.0.0.1:%d", protocol.DefaultDirectoryPort),
		"Directory server address")
	rootCmd.PersistentFlags().StringVar(&userName, "name", "", "Display name")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./vkuchat-data",
		"Directory for transcripts, history and downloads")
}
