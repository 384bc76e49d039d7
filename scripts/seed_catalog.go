package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"renthaus/internal/catalog"
	"renthaus/internal/database"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/renthaus.db", "path to sqlite db")
		dsn         = flag.String("postgres", "", "postgres dsn; overrides -db")
	)
	flag.Parse()

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		return err
	}

	var db *database.DB
	if *dsn != "" {
		db, err = database.NewPostgres(*dsn, 2, &logger)
	} else {
		db, err = database.NewDB(*dbPath, &logger)
	}
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := catalog.Apply(ctx, db, cat, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("done: vendors=%d products=%d days_opened=%d\n", res.Vendors, res.Products, res.DaysOpened)
	return nil
}
