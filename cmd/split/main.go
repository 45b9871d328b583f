package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ThiagoRGoveia/vacancy-stats/internal/config"
	"github.com/ThiagoRGoveia/vacancy-stats/internal/parser"
	"github.com/joho/godotenv"
)

func execute(inputPath, outputDir string, delimiter rune) error {
	reader, err := parser.OpenChunk(inputPath, delimiter)
	if err != nil {
		return err
	}
	defer reader.Close()

	sink, err := parser.NewDirSink(outputDir)
	if err != nil {
		return err
	}

	splitStats, err := parser.SplitByYear(reader, sink)
	if err != nil {
		return fmt.Errorf("failed to split %s: %w", inputPath, err)
	}

	log.Printf("Wrote %d rows in %d groups, skipped %d rows", splitStats.Rows, splitStats.Groups, splitStats.Skipped)
	log.Printf("Years: %s", strings.Join(splitStats.Years, ", "))
	if splitStats.Groups > len(splitStats.Years) {
		log.Println("Warning: input was not sorted by published_at, some years were appended more than once")
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}
	startTime := time.Now()

	if len(os.Args) < 3 {
		log.Fatalf("usage: %s <vacancies file> <output directory>", os.Args[0])
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Splitting %s into %s...", os.Args[1], os.Args[2])
	if err := execute(os.Args[1], os.Args[2], cfg.CSVDelimiter); err != nil {
		log.Fatalf("Error during split: %v\n", err)
	}
	log.Printf("Execution time: %s\n", time.Since(startTime))
}
