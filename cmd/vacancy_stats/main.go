package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/config"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/currency"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/database"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/ingestion"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/logger"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/parser"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/report"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/stats"
	"github.com/joho/godotenv"
)

type job struct {
	path    string
	title   string
	service *ingestion.IngestionService
}

func setup() (*job, func(), error) {
	if len(os.Args) < 3 {
		return nil, nil, fmt.Errorf("usage: %s <file or directory> <vacancy title>", os.Args[0])
	}

	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	appLogger := logger.New(cfg.LogLevel)

	cleanupFunc := func() {}

	// Left nil without a DSN so the services skip persistence.
	var dbManager database.DBManager
	if cfg.DatabaseURL != "" {
		dbpool, err := database.ConnectDB(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		dbManager = database.NewPostgresDBManager(context.Background(), dbpool)
		cleanupFunc = dbpool.Close
	}

	rates, err := database.LoadRateSource(cfg, dbManager)
	if err != nil {
		cleanupFunc()
		return nil, nil, err
	}
	converter := currency.NewConverter(cfg.CommonCurrency, rates)
	appLogger.Info("exchange rates loaded", "source", cfg.RatesSource, "currencies", len(rates.Currencies()))

	asyncWorker := ingestion.NewAsyncWorker(dbManager, converter, appLogger, ingestion.AsyncWorkerConfig{
		CSVDelimiter:  cfg.CSVDelimiter,
		ParserOptions: parser.Options{AllowEmptySalary: cfg.AllowEmptySalary},
	})
	fileProcessor := ingestion.NewFileProcessor(dbManager, appLogger)

	service := ingestion.NewIngestionService(
		dbManager,
		ingestion.Setup{ChannelSize: cfg.ChannelSize},
		asyncWorker,
		fileProcessor,
		*cfg,
		appLogger,
	)

	return &job{path: os.Args[1], title: os.Args[2], service: service}, cleanupFunc, nil
}

func execute(j *job) (*stats.Result, error) {
	log.Printf("Aggregating vacancies for %q from %s...", j.title, j.path)
	return j.service.Execute(context.Background(), j.path, j.title)
}

func cleanup(cleanupFunc func()) {
	log.Println("Cleaning up resources...")
	cleanupFunc()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}
	startTime := time.Now()

	j, cleanupFunc, err := setup()
	if err != nil {
		log.Fatal(err)
	}

	result, err := execute(j)
	if result == nil {
		cleanup(cleanupFunc)
		log.Fatalf("Error during aggregation: %v\n", err)
	}
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	cleanup(cleanupFunc)

	if err := report.WriteText(os.Stdout, result); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	log.Printf("Execution time: %s\n", time.Since(startTime))
}
