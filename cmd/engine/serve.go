package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jobmatch-engine/internal/schedule"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine: scheduled ingestion, re-scoring and the local status API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := newEngine()
		if err != nil {
			return err
		}
		defer e.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		for _, src := range e.cfg.Sources {
			if !src.Enabled {
				continue
			}
			e.sched.Register(schedule.KindIngestSource, src.ID, src.Interval.Std())
		}
		profiles, err := e.db.ListActiveProfiles(ctx)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			e.sched.Register(schedule.KindRescoreProfile, p.ID, e.cfg.Scheduler.RescoreInterval.Std())
		}

		if e.buf != nil {
			go e.buf.Run(ctx)
		}
		e.sched.Start(ctx)

		srv := newStatusServer(e)
		go func() {
			<-ctx.Done()
			srv.shutdown()
		}()
		if err := srv.serve(flagListen); err != nil {
			stop()
			e.sched.Wait()
			return err
		}

		e.sched.Wait()
		e.log.Info("engine stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "127.0.0.1:38471", "status API listen address")
}
