package main

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"coindash/internal/client"
	"coindash/internal/config"
	"coindash/internal/renderer"
)

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg := config.Load(path)

	// The terminal belongs to the game while we run, so logs go to a file
	// or nowhere.
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "could not open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
		if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	} else {
		log.Logger = zerolog.Nop()
	}

	params := client.DefaultParams()
	params.InterpolationDelay = cfg.InterpolationDelay.Std()

	sync := client.NewSynchronizer(params, clockwork.NewRealClock())
	c, err := client.Dial(cfg.ServerAddr, sync)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()
	go c.Run()

	if err := renderer.Run(c, sync, params.Tunables); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
