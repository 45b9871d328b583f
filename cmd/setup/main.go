package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/config"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/joho/godotenv"
)

func main() {
	sqlitePath := flag.String("sqlite", "", "also export the imported rates to this SQLite file")
	flag.Parse()

	fmt.Println("Starting database setup...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	dbpool, err := database.ConnectDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer dbpool.Close()

	dbManager := database.NewPostgresDBManager(context.Background(), dbpool)

	fmt.Println("Creating exchange_rates, chunk_records, chunk_partials and statistics_runs tables...")
	if err := dbManager.CreateTables(); err != nil {
		log.Fatalf("Error creating tables: %v", err)
	}
	fmt.Println("Tables created successfully.")

	if flag.NArg() == 0 {
		fmt.Println("Database setup finished successfully.")
		return
	}

	ratesPath := flag.Arg(0)
	fmt.Printf("Importing exchange rates from %s...\n", ratesPath)
	table, err := currency.LoadCSVFile(ratesPath)
	if err != nil {
		log.Fatalf("Error reading exchange rates: %v", err)
	}

	inserted, err := dbManager.InsertExchangeRates(table.Rates())
	if err != nil {
		log.Fatalf("Error importing exchange rates: %v", err)
	}
	fmt.Printf("%d exchange rates imported for %d periods.\n", inserted, len(table.Periods()))

	if *sqlitePath != "" {
		if err := database.SaveSQLiteRates(*sqlitePath, table); err != nil {
			log.Fatalf("Error exporting exchange rates to %s: %v", *sqlitePath, err)
		}
		fmt.Printf("Exchange rates exported to %s.\n", *sqlitePath)
	}

	fmt.Println("Database setup finished successfully.")
}
