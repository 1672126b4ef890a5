package main

import (
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"coindash/internal/config"
	"coindash/internal/netwrk"
)

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg := config.Load(path)

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("run_id", uuid.NewString()).Logger()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.ListenAddr).Msg("could not bind")
	}
	log.Info().Str("addr", listener.Addr().String()).Msg("listening")

	opts := netwrk.DefaultOptions()
	opts.MinPlayers = cfg.MinPlayers
	opts.BroadcastInterval = cfg.BroadcastInterval.Std()
	opts.CoinRespawnInterval = cfg.CoinRespawnInterval.Std()
	opts.SimulatedLatency = cfg.SimulatedLatency.Std()

	rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	srv := netwrk.NewServer(listener, opts, clockwork.NewRealClock(), rng)
	srv.Run()
}
