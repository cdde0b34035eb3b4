package station

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStations() []Station {
	return []Station{
		{ID: "Alpha", Name: "Station Alpha", Lat: 34.01, Lon: 75.31, Capacity: 120, Status: StatusActive},
		{ID: "Bravo", Name: "Station Bravo", Lat: 34.1526, Lon: 77.5771, Capacity: 150, Status: StatusActive},
		{ID: "Echo", Name: "Station Echo", Lat: 35.3716, Lon: 77.2368, Capacity: 140, Status: StatusOffline},
	}
}

func TestNearestActive(t *testing.T) {
	r := NewRegistry(testStations())
	s, ok := r.NearestActive(34.0, 75.3)
	if !ok || s.ID != "Alpha" {
		t.Fatalf("expected Alpha, got %+v (ok=%v)", s, ok)
	}
	// Echo is closest to this point but offline.
	s, ok = r.NearestActive(35.37, 77.23)
	if !ok || s.ID == "Echo" {
		t.Fatalf("offline station returned: %+v", s)
	}
}

func TestNearestActiveNoneActive(t *testing.T) {
	stations := testStations()
	for i := range stations {
		stations[i].Status = StatusOffline
	}
	r := NewRegistry(stations)
	if s, ok := r.NearestActive(34, 75); ok {
		t.Fatalf("expected no station, got %+v", s)
	}
}

func TestNearestActiveTieBreak(t *testing.T) {
	r := NewRegistry([]Station{
		{ID: "first", Lat: 1, Lon: 0, Status: StatusActive},
		{ID: "second", Lat: -1, Lon: 0, Status: StatusActive},
	})
	s, ok := r.NearestActive(0, 0)
	if !ok || s.ID != "first" {
		t.Fatalf("expected first registered station on tie, got %+v", s)
	}
}

func TestSetStatus(t *testing.T) {
	r := NewRegistry(testStations())
	if err := r.SetStatus("Alpha", StatusOffline); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if s, _ := r.Get("Alpha"); s.Active() {
		t.Fatalf("expected Alpha offline")
	}
	if err := r.SetStatus("Zulu", StatusOffline); err != ErrUnknownStation {
		t.Fatalf("expected ErrUnknownStation, got %v", err)
	}
}

func TestLoadStatusFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.yaml")
	if err := os.WriteFile(path, []byte("Echo: Active\nAlpha: Offline\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewRegistry(testStations())
	if err := r.LoadStatusFile(path); err != nil {
		t.Fatalf("LoadStatusFile: %v", err)
	}
	if s, _ := r.Get("Echo"); !s.Active() {
		t.Fatalf("expected Echo active")
	}
	if s, _ := r.Get("Alpha"); s.Active() {
		t.Fatalf("expected Alpha offline")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.yaml")
	if err := os.WriteFile(path, []byte("Alpha: Active\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewRegistry(testStations())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Watch(ctx, path); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := os.WriteFile(path, []byte("Alpha: Offline\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s, _ := r.Get("Alpha"); !s.Active() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("station status not reloaded")
}
