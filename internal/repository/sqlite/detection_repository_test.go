package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"roadscan/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func TestDatabase_Connection(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDatabase_MigrationIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 2; i++ {
		db, err := New(dbPath)
		if err != nil {
			t.Fatalf("Open #%d failed: %v", i+1, err)
		}
		db.Close()
	}
}

func TestDetectionRepository_Insert(t *testing.T) {
	repo := NewDetectionRepository(setupTestDB(t))

	id, err := repo.Insert(&models.StoredDetection{
		Threshold:  0.5,
		DamageType: "Potholes",
		Latitude:   52.2297,
		Longitude:  21.0122,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if id <= 0 {
		t.Errorf("Expected positive ID, got %d", id)
	}
}

func TestDetectionRepository_GetAllKeepsInsertionOrder(t *testing.T) {
	repo := NewDetectionRepository(setupTestDB(t))

	rows := []models.StoredDetection{
		{Threshold: 0.5, DamageType: "Longitudinal Crack", Latitude: 1.5, Longitude: 2.5},
		{Threshold: 0.3, DamageType: "Potholes", Latitude: -33.8688, Longitude: 151.2093},
		{Threshold: 0.8, DamageType: "Alligator Crack", Latitude: 0, Longitude: 0},
	}
	if err := repo.InsertBatch(rows); err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	got, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	if diff := cmp.Diff(rows, got, cmpopts.IgnoreFields(models.StoredDetection{}, "ID")); diff != "" {
		t.Errorf("GetAll mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectionRepository_GetAllEmpty(t *testing.T) {
	repo := NewDetectionRepository(setupTestDB(t))

	got, err := repo.GetAll()
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", got)
	}
}

func TestDetectionRepository_InsertBatchEmpty(t *testing.T) {
	repo := NewDetectionRepository(setupTestDB(t))

	if err := repo.InsertBatch(nil); err != nil {
		t.Fatalf("InsertBatch(nil) failed: %v", err)
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 rows, got %d", count)
	}
}

func TestDatabase_ConcurrentAccess(t *testing.T) {
	repo := NewDetectionRepository(setupTestDB(t))

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			_, err := repo.Insert(&models.StoredDetection{
				Threshold:  0.5,
				DamageType: "Transverse Crack",
				Latitude:   float64(idx),
				Longitude:  float64(idx),
			})
			if err != nil {
				t.Errorf("Concurrent insert %d failed: %v", idx, err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 10 {
		t.Errorf("Expected 10 detections, got %d", count)
	}
}
