package main

import (
	"context"
	"fmt"
	"time"

	"livemarket/internal/bootstrap"
	"livemarket/internal/config"
	"livemarket/internal/realtime"
	"livemarket/internal/repository"
	"livemarket/internal/service"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Move rooms with stale heartbeats offline once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, rdb, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer closeDatabase(db)
		if rdb != nil {
			defer rdb.Close()
		}

		rt, err := bootstrap.NewRealtime(cfg, rdb)
		if err != nil {
			return fmt.Errorf("realtime setup failed: %w", err)
		}

		fanout := realtime.NewFanout(rt.Publisher, cfg.FanoutTimeout())
		rooms := repository.NewRoomRepository(db, nil)
		sweeper := service.NewHeartbeatSweeper(rooms, fanout, cfg.HeartbeatTimeout(), cfg.HeartbeatSweepInterval())

		expired, err := sweeper.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fanout.Wait(drainCtx); err != nil {
			cmd.PrintErrf("fanout did not drain: %v\n", err)
		}
		if err := rt.Close(drainCtx); err != nil {
			cmd.PrintErrf("realtime close: %v\n", err)
		}

		cmd.Printf("expired %d rooms\n", expired)
		return nil
	},
}
