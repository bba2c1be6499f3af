package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dcrodman/squirrelay/internal/core"
	"github.com/dcrodman/squirrelay/internal/core/data"
)

var historyFlags struct {
	limit  int
	roomID int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Prints recently finished games",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printHistory()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "Maximum number of games to print")
	historyCmd.Flags().IntVar(&historyFlags.roomID, "room", 0, "Only print games played in this room")
	rootCmd.AddCommand(historyCmd)
}

func printHistory() error {
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}
	db, err := data.Open(config.Database.Engine, config.DataSource(), false)
	if err != nil {
		return err
	}
	defer data.Shutdown(db)

	var records []data.GameRecord
	if historyFlags.roomID != 0 {
		records, err = data.FindGameRecordsByRoom(db, historyFlags.roomID)
	} else {
		records, err = data.FindRecentGameRecords(db, historyFlags.limit)
	}
	if err != nil {
		return fmt.Errorf("error reading game history: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tROOM\tPLAYERS\tMESSAGES\tDURATION\tVERSION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%v\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.RoomID, r.NumberOfPlayers,
			r.NumberOfGameMessages, r.Duration(), r.ClientVersion)
	}
	return w.Flush()
}
