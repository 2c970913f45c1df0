package main

import (
	"livemarket/internal/seed"

	"github.com/spf13/cobra"
)

var seedOpts seed.Options

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo rooms and chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := openDatabase()
		if err != nil {
			return err
		}
		defer closeDatabase(db)

		sum, err := seed.Seed(cmd.Context(), db, seedOpts)
		if err != nil {
			return err
		}
		cmd.Printf("seeded %d rooms (%d live, %d ended) and %d messages\n", sum.Rooms, sum.Live, sum.Ended, sum.Messages)
		return nil
	},
}

func init() {
	f := seedCmd.Flags()
	f.IntVar(&seedOpts.NumRooms, "rooms", 12, "number of rooms to create")
	f.IntVar(&seedOpts.MessagesPerRoom, "messages", 20, "chat messages per room")
	f.IntVar(&seedOpts.Mix.Live, "live", 50, "percent of rooms left live")
	f.IntVar(&seedOpts.Mix.Ended, "ended", 20, "percent of rooms left ended")
	f.BoolVar(&seedOpts.ShouldClean, "clean", false, "delete existing rooms and chat first")
	f.Int64Var(&seedOpts.RandSeed, "rand-seed", 0, "seed for reproducible data")
}
