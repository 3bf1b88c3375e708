package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"guesthouse/internal/adapters/channel"
	"guesthouse/internal/app"
)

func importCmd() *cobra.Command {
	var (
		since      string
		withPrices bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import channel prices and reservations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var from time.Time
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("--since: %w", err)
				}
				from = t
			}

			d, closeFn, err := setup()
			if err != nil {
				return err
			}
			defer closeFn()

			client, err := channel.New(d.cfg.ChannelBase, d.cfg.ChannelKey, d.cfg.ChannelRPS)
			if err != nil {
				return err
			}

			// one run at a time; a second run would race the overlap checks
			release, err := d.locker.Obtain(cmd.Context(), "importer", d.cfg.ImportLockTTL)
			if err != nil {
				return err
			}
			defer func() {
				if err := release(context.Background()); err != nil {
					log.Warn().Err(err).Msg("release import lock")
				}
			}()

			ing := app.NewImportService(client, d.prices, d.reservations, d.repo)
			return runImport(cmd, ing, from, withPrices, d.cfg.Workers)
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only reservations changed since this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&withPrices, "prices", true, "import the price feed before reservations")
	return cmd
}

func runImport(cmd *cobra.Command, ing *app.ImportService, since time.Time, withPrices bool, workers int) error {
	ctx := cmd.Context()
	if workers <= 0 {
		workers = 1
	}

	log.Info().
		Time("since", since).
		Bool("prices", withPrices).
		Int("workers", workers).
		Msg("import starting")

	if withPrices {
		st, err := ing.ImportPrices(ctx)
		if err != nil {
			return fmt.Errorf("import prices: %w", err)
		}
		log.Info().Int("saved", st.Saved).Int("skipped", st.Skipped).Msg("prices imported")
	}

	groups, err := ing.FetchReservations(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch reservations: %w", err)
	}

	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total app.ImportStats
	)
	for _, g := range groups {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(group []app.ImportedReservation) {
			defer wg.Done()
			defer sem.Release(1)

			st, err := ing.ImportGroup(ctx, group)
			if err != nil {
				log.Warn().Err(err).Int64("apartment", group[0].Reservation.Apartment.ID).Msg("group aborted")
			}
			mu.Lock()
			total.Add(st)
			mu.Unlock()
		}(g)
	}
	wg.Wait()

	log.Info().
		Int("groups", len(groups)).
		Int("saved", total.Saved).
		Int("skipped", total.Skipped).
		Int("failed", total.Failed).
		Msg("import completed")
	if err := ctx.Err(); err != nil {
		return err
	}
	if total.Failed > 0 {
		return fmt.Errorf("%d reservations failed", total.Failed)
	}
	return nil
}
