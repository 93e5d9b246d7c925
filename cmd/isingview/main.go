//go:build ebiten

package main

import (
	"errors"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/pflag"

	"isingsim/internal/app"
	"isingsim/internal/logging"
)

func main() {
	log := logging.NewLogger(os.Getenv("ISINGSIM_LOG_LEVEL"), os.Stderr)

	cfg := app.NewConfig()
	cfg.Bind(pflag.CommandLine)
	pflag.Parse()

	sim, err := app.NewLatticeSim(cfg, cfg.Seed)
	if err != nil {
		log.Error("invalid viewer configuration", "err", err)
		os.Exit(2)
	}

	game := app.New(sim, cfg.Scale, cfg.Rate, cfg.Seed)
	w, h := game.Layout(0, 0)

	ebiten.SetWindowTitle("isingsim - " + sim.Name())
	ebiten.SetTPS(cfg.TPS)
	ebiten.SetWindowSize(w, h)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Error("viewer stopped", "err", err)
		os.Exit(1)
	}
}
