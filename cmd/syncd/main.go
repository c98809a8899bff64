package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mangashelf/internal/catalog"
	"mangashelf/internal/config"
	"mangashelf/internal/covers"
	"mangashelf/internal/metadata"
	"mangashelf/internal/scanner"
	"mangashelf/internal/scheduler"
	"mangashelf/pkg/models"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.App.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	mangaStore, err := catalog.NewStore[models.Manga](cfg.Data.MangaDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open manga collection")
	}
	animeStore, err := catalog.NewStore[models.Anime](cfg.Data.AnimeDir)
	if err != nil {
		log.Fatal().Err(err).Msg("open anime collection")
	}

	coverCache, err := covers.NewCache(cfg.Data.CoversDir, mangaStore, animeStore)
	if err != nil {
		log.Fatal().Err(err).Msg("open cover cache")
	}

	// Provider precedence: Kitsu, then AniList, then MAL. The order here
	// is the merge order everywhere.
	reconciler := metadata.NewReconciler(
		metadata.NewKitsu(cfg.Providers.KitsuBaseURL),
		metadata.NewAniList(cfg.Providers.AniListURL),
		metadata.NewJikan(cfg.Providers.JikanBaseURL),
	)
	hydrator := scanner.NewHydrator(mangaStore, animeStore, reconciler)

	scan := &scanner.Scanner{
		Store:     mangaStore,
		Covers:    coverCache,
		Hydrator:  hydrator,
		IndexPath: cfg.Data.MangaIndexPath,
	}
	refresher := &scanner.Refresher{
		Store:     animeStore,
		Covers:    coverCache,
		Hydrator:  hydrator,
		URL:       cfg.Sync.AnimeDBURL,
		LocalPath: cfg.Data.AnimeDBPath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := hydrator.Start(ctx, cfg.Sync.HydrationWorkers); err != nil {
			log.Error().Err(err).Msg("hydrator stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := coverCache.Start(ctx, cfg.Sync.CoverWorkers); err != nil {
			log.Error().Err(err).Msg("cover cache stopped")
		}
	}()

	var sched scheduler.Scheduler
	sched.Add(scheduler.Job{
		Name:     "catalog-scan",
		Interval: cfg.Sync.ScanInterval,
		Run: func(ctx context.Context) error {
			if _, err := scan.Scan(ctx); err != nil {
				// Keep going: the anime refresh is independent of
				// the manga index.
				log.Error().Err(err).Msg("manga index scan failed")
			}
			_, err := refresher.Refresh(ctx)
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "animedb-download",
		Interval: cfg.Sync.DownloadInterval,
		Run:      refresher.Sync,
	})

	log.Info().
		Str("data_dir", cfg.Data.Dir).
		Dur("scan_interval", cfg.Sync.ScanInterval).
		Dur("download_interval", cfg.Sync.DownloadInterval).
		Msg("syncd started")

	sched.Start(ctx)
	sched.Wait()
	wg.Wait()
	log.Info().Msg("syncd stopped")
}
