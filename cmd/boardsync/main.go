package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	setupLogging(os.Getenv("BOARDSYNC_LOG_LEVEL"), os.Getenv("BOARDSYNC_LOG_FORMAT"))

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("boardsync failed")
		os.Exit(1)
	}
}

// setupLogging configures the global zerolog logger. Unknown levels fall back
// to info; format "text" selects the human-readable console writer.
func setupLogging(levelName, format string) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
