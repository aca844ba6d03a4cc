package main

import (
	"fmt"
	"os"

	"github.com/BearBump/CargoTrack/config"
	"github.com/BearBump/CargoTrack/internal/bootstrap"
)

func main() {
	open := func() (*bootstrap.Deps, *config.Config, error) {
		cfg, err := config.LoadConfig(os.Getenv("configPath"))
		if err != nil {
			return nil, nil, fmt.Errorf("ошибка парсинга конфига, %w", err)
		}
		deps, err := bootstrap.Build(cfg, bootstrap.DefaultFactories())
		return deps, cfg, err
	}

	root, closeDeps := newRootCmd(open)
	err := root.Execute()
	closeDeps()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
