package main

import (
	"strings"
	"testing"

	"roadscan/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestReadDetections(t *testing.T) {
	input := `threshold,damage_type,latitude,longitude
0.5,Potholes,50.0614,19.9366
0.3, "Alligator Crack", -33.86, 151.20
oops,Potholes,1,2
0.4,,1,2
0.6,Transverse Crack,1
`

	rows, skipped, err := readDetections(strings.NewReader(input))
	if err != nil {
		t.Fatalf("readDetections failed: %v", err)
	}

	want := []models.StoredDetection{
		{Threshold: 0.5, DamageType: "Potholes", Latitude: 50.0614, Longitude: 19.9366},
		{Threshold: 0.3, DamageType: "Alligator Crack", Latitude: -33.86, Longitude: 151.20},
	}
	if diff := cmp.Diff(want, rows, cmpopts.IgnoreFields(models.StoredDetection{}, "ID")); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
	if skipped != 3 {
		t.Errorf("Expected 3 skipped rows, got %d", skipped)
	}
}

func TestReadDetections_NoHeader(t *testing.T) {
	rows, skipped, err := readDetections(strings.NewReader("0.7,Longitudinal Crack,1.5,2.5\n"))
	if err != nil {
		t.Fatalf("readDetections failed: %v", err)
	}
	if len(rows) != 1 || skipped != 0 {
		t.Errorf("Expected 1 row and 0 skipped, got %d and %d", len(rows), skipped)
	}
}
