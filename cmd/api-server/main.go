package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mangashelf/internal/catalog"
	"mangashelf/internal/config"
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

	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "data_dir": cfg.Data.Dir})
	})

	handler := catalog.NewHandler(mangaStore, animeStore)
	handler.RegisterRoutes(router.Group(""))

	// Cached cover images referenced by the records' cover field.
	router.Static("/covers", cfg.Data.CoversDir)

	srv := &http.Server{
		Addr:    cfg.App.APIAddr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.App.APIAddr).Msg("api server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("api server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
