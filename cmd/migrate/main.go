package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"roadscan/internal/models"
	"roadscan/internal/repository/sqlite"
)

// Creates the detection history schema and optionally imports rows from a
// CSV export with the columns threshold, damage_type, latitude, longitude.
func main() {
	csvPath := flag.String("csv", "", "CSV file of detections to import (optional)")
	dbPath := flag.String("db", "data/detections.db", "Database path")
	flag.Parse()

	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewDetectionRepository(db)
	fmt.Printf("✅ Schema ready in %s\n", *dbPath)

	if *csvPath == "" {
		printStats(repo)
		return
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *csvPath, err)
	}
	defer f.Close()

	rows, skipped, err := readDetections(f)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *csvPath, err)
	}

	if len(rows) == 0 {
		fmt.Println("No detections found to import")
		return
	}

	fmt.Printf("Inserting %d detections into database...\n", len(rows))
	if err := repo.InsertBatch(rows); err != nil {
		log.Fatalf("Failed to insert detections: %v", err)
	}

	fmt.Printf("✅ Successfully imported %d detections\n", len(rows))
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d rows (invalid format)\n", skipped)
	}
	printStats(repo)
}

// readDetections parses CSV rows, skipping a header line and malformed rows.
func readDetections(r io.Reader) ([]models.StoredDetection, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []models.StoredDetection
	skipped := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, skipped, nil
		}
		if err != nil {
			return nil, skipped, err
		}

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "threshold") {
			continue
		}

		det, err := parseRecord(record)
		if err != nil {
			log.Printf("⚠️  Skipping line %d: %v", line, err)
			skipped++
			continue
		}
		rows = append(rows, det)
	}
}

func parseRecord(record []string) (models.StoredDetection, error) {
	if len(record) != 4 {
		return models.StoredDetection{}, fmt.Errorf("expected 4 fields, got %d", len(record))
	}

	var values [3]float64
	for i, idx := range []int{0, 2, 3} {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
		if err != nil {
			return models.StoredDetection{}, fmt.Errorf("field %d: %w", idx+1, err)
		}
		values[i] = v
	}

	damageType := strings.TrimSpace(record[1])
	if damageType == "" {
		return models.StoredDetection{}, errors.New("empty damage type")
	}

	return models.StoredDetection{
		Threshold:  values[0],
		DamageType: damageType,
		Latitude:   values[1],
		Longitude:  values[2],
	}, nil
}

func printStats(repo *sqlite.DetectionRepository) {
	count, err := repo.Count()
	if err != nil {
		return
	}
	fmt.Printf("\n📊 Database Statistics:\n")
	fmt.Printf("   Total detections: %d\n", count)
}
