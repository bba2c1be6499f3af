// The squirrelay command runs the relay server, along with a couple of tools
// for inspecting a running one.
//
// Commands:
//
//	server: runs the relay until interrupted
//	rooms: connects as a client and lists the visible rooms
//	history: prints recently finished games from the history database
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "squirrelay",
	Short: "Lobby and message relay server for small multiplayer games",
	Long: `squirrelay keeps a list of rooms that clients can create, browse and enter.
	Once a room's owner starts a game, every message a player sends is relayed
	to the whole room on the next server tick.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./",
		"Path to the directory containing the server config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
