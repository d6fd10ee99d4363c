package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"gym-iot-backend/internal/models"
)

// MongoStore keeps readings in a MongoDB time-series collection
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	schema     schemaGate
}

// NewMongoConnection creates a client for uri. The driver connects in the
// background, so an unreachable primary is only logged.
func NewMongoConnection(uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Printf("Warning: MongoDB primary unreachable, serving fallback data until it is: %v", err)
		return client, nil
	}

	log.Println("Connected to MongoDB")
	return client, nil
}

// NewMongoStore wraps the collection. The time-series collection and its
// indexes are created on the first call that reaches the server.
func NewMongoStore(client *mongo.Client, database, collection string) (*MongoStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("mongo collection name is required")
	}

	m := &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}
	m.schema.init = m.createCollection

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.schema.ensure(ctx); err != nil {
		log.Printf("Warning: MongoDB collection %s not prepared yet: %v", collection, err)
	}
	return m, nil
}

func (m *MongoStore) createCollection(ctx context.Context) error {
	tsOptions := options.CreateCollection().SetTimeSeriesOptions(
		options.TimeSeries().
			SetTimeField("timestamp").
			SetMetaField("device").
			SetGranularity("seconds"),
	)

	// Fails with NamespaceExists on restart, which is fine
	name := m.collection.Name()
	if err := m.collection.Database().CreateCollection(ctx, name, tsOptions); err != nil {
		log.Printf("MongoDB: create collection %s: %v", name, err)
	}

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "measurement", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Query returns points matching q
func (m *MongoStore) Query(ctx context.Context, q Query) ([]models.Point, error) {
	if err := m.schema.ensure(ctx); err != nil {
		return nil, err
	}

	cursor, err := m.collection.Find(ctx, buildMongoFilter(q), buildMongoFindOptions(q))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Measurement, err)
	}
	defer cursor.Close(ctx)

	points := make([]models.Point, 0)
	if err := cursor.All(ctx, &points); err != nil {
		return nil, fmt.Errorf("failed to decode %s points: %w", q.Measurement, err)
	}
	return points, nil
}

func buildMongoFilter(q Query) bson.D {
	filter := bson.D{{Key: "measurement", Value: q.Measurement}}
	if q.Device != "" {
		filter = append(filter, bson.E{Key: "device", Value: q.Device})
	}
	if !q.Since.IsZero() {
		filter = append(filter, bson.E{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: q.Since}}})
	}
	return filter
}

func buildMongoFindOptions(q Query) *options.FindOptionsBuilder {
	direction := 1
	if q.Descending {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: direction}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

// Write inserts points; an unordered insert keeps going past a bad document
func (m *MongoStore) Write(ctx context.Context, points ...models.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := m.schema.ensure(ctx); err != nil {
		return err
	}

	docs := make([]interface{}, len(points))
	for i, p := range points {
		docs[i] = p
	}

	opts := options.InsertMany().SetOrdered(false)
	if _, err := m.collection.InsertMany(ctx, docs, opts); err != nil {
		return fmt.Errorf("failed to insert %d points: %w", len(points), err)
	}
	return nil
}

// Ping checks the primary is reachable
func (m *MongoStore) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
