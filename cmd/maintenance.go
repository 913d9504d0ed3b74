package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/procpulse/agent/internal/logging"
	"github.com/procpulse/agent/internal/storage"
)

type VacuumCommand struct {
	Db string `long:"db" description:"SQLite database file path" default:"./procpulse.db"`
}

func (c *VacuumCommand) Execute(_ []string) error {
	logger, err := logging.NewLogger("procpulse", options.Debug)
	if err != nil {
		return errors.WithMessage(err, "new logger")
	}
	defer logger.Sync()

	store, err := storage.NewStore(logger, c.Db)
	if err != nil {
		return errors.WithMessage(err, "open store")
	}
	defer store.Close()

	if err := store.Vacuum(context.Background()); err != nil {
		return err
	}

	fmt.Println("VACUUM done.")
	return nil
}

type ResetCommand struct {
	Db string `long:"db" description:"SQLite database file path" default:"./procpulse.db"`
}

func (c *ResetCommand) Execute(_ []string) error {
	logger, err := logging.NewLogger("procpulse", options.Debug)
	if err != nil {
		return errors.WithMessage(err, "new logger")
	}
	defer logger.Sync()

	store, err := storage.NewStore(logger, c.Db)
	if err != nil {
		return errors.WithMessage(err, "open store")
	}
	defer store.Close()

	if err := store.Reset(context.Background()); err != nil {
		return err
	}

	fmt.Println("Database reset and vacuumed.")
	return nil
}
