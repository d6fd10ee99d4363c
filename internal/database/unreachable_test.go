package database

import (
	"context"
	"testing"
	"time"

	"gym-iot-backend/internal/models"
)

// Port 1 on loopback refuses connections, so these fail fast without a server.

func TestClickHouseUnreachableStillOpens(t *testing.T) {
	db, err := NewClickHouseDB("127.0.0.1:1", "default", "default", "")
	if err != nil {
		t.Fatalf("expected store despite unreachable server, got %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.Query(ctx, Query{Measurement: models.MeasurementOccupancy, Limit: 1}); err == nil {
		t.Fatal("expected query error while server is down")
	}
	if err := db.Write(ctx, models.Point{Timestamp: time.Now(), Measurement: models.MeasurementOccupancy, Value: 1}); err == nil {
		t.Fatal("expected write error while server is down")
	}
}

func TestMongoUnreachableStillOpens(t *testing.T) {
	client, err := NewMongoConnection("mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200")
	if err != nil {
		t.Fatalf("expected client despite unreachable server, got %v", err)
	}

	store, err := NewMongoStore(client, "gym", "readings")
	if err != nil {
		t.Fatalf("expected store despite unreachable server, got %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := store.Query(ctx, Query{Measurement: models.MeasurementOccupancy, Limit: 1}); err == nil {
		t.Fatal("expected query error while server is down")
	}
}

func TestMongoStoreRequiresCollection(t *testing.T) {
	client, err := NewMongoConnection("mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=50")
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Disconnect(context.Background())

	if _, err := NewMongoStore(client, "gym", ""); err == nil {
		t.Fatal("expected error for empty collection name")
	}
}
