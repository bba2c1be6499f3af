package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcrodman/squirrelay/pkg/client"
)

var roomsFlags struct {
	url     string
	key     string
	version string
	timeout time.Duration
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Lists the visible rooms on a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), roomsFlags.timeout)
		defer cancel()
		return listRooms(ctx)
	},
}

func init() {
	roomsCmd.Flags().StringVar(&roomsFlags.url, "url", "ws://localhost:11000/ws", "Websocket endpoint of the server")
	roomsCmd.Flags().StringVar(&roomsFlags.key, "key", "", "Connection key expected by the server")
	roomsCmd.Flags().StringVar(&roomsFlags.version, "client-version", "", "Client version to announce in the handshake")
	roomsCmd.Flags().DurationVar(&roomsFlags.timeout, "timeout", 5*time.Second, "How long to wait for the server")
	rootCmd.AddCommand(roomsCmd)
}

func listRooms(ctx context.Context) error {
	c, err := client.Dial(ctx, roomsFlags.url, client.Options{
		ConnectionKey: roomsFlags.key,
		ClientVersion: roomsFlags.version,
	})
	if err != nil {
		return err
	}
	defer c.Close()

	count, err := c.ClientsCount(ctx)
	if err != nil {
		return fmt.Errorf("error requesting clients count: %w", err)
	}
	rooms, err := c.RoomList(ctx)
	if err != nil {
		return fmt.Errorf("error requesting room list: %w", err)
	}

	fmt.Printf("%d clients connected, %d visible rooms\n", count, len(rooms))
	if len(rooms) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLAYERS\tPLAYING\tVERSION\tMESSAGE")
	for _, r := range rooms {
		fmt.Fprintf(w, "%d\t%d/%d\t%v\t%s\t%q\n",
			r.ID, r.NumberOfPlayers, r.MaxNumberOfPlayers, r.IsPlaying, r.ClientVersion, r.Message)
	}
	return w.Flush()
}
