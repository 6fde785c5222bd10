package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"edu-etl/pkg/config"
	"edu-etl/pkg/domain"
)

// Client wraps the MongoDB client and the pipeline database
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
}

// URI builds the connection string from settings; an explicit URI wins over host/port.
func URI(cfg config.MongoSettings) string {
	if cfg.URI != "" {
		return cfg.URI
	}
	port := cfg.Port
	if port == 0 {
		port = 27017
	}
	return fmt.Sprintf("mongodb://%s:%d", cfg.Host, port)
}

// NewClient creates a new database client
func NewClient(connectionString, databaseName string) *Client {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return client with nil - error will be caught during Connect()
		return &Client{}
	}

	return &Client{
		mongoClient: mongoClient,
		database:    mongoClient.Database(databaseName),
	}
}

// Connect verifies the connection to MongoDB
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// MongoOpener returns an Opener that dials a new client per call.
func MongoOpener(cfg config.MongoSettings) Opener {
	return func(ctx context.Context) (Store, error) {
		c := NewClient(URI(cfg), cfg.Database)
		if err := c.Connect(ctx); err != nil {
			_ = c.Close(ctx)
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return c, nil
	}
}

func (c *Client) coll(name string) (*mongo.Collection, error) {
	if c.database == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return c.database.Collection(name), nil
}

// Drop removes a collection; dropping a missing collection is not an error
func (c *Client) Drop(ctx context.Context, name string) error {
	col, err := c.coll(name)
	if err != nil {
		return err
	}
	if err := col.Drop(ctx); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	return nil
}

// InsertOne inserts a single document
func (c *Client) InsertOne(ctx context.Context, name string, doc domain.Record) error {
	col, err := c.coll(name)
	if err != nil {
		return err
	}
	if _, err := col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	return nil
}

// InsertMany inserts docs in order. An empty slice is a no-op.
func (c *Client) InsertMany(ctx context.Context, name string, docs []domain.Record) error {
	if len(docs) == 0 {
		return nil
	}
	col, err := c.coll(name)
	if err != nil {
		return err
	}
	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	if _, err := col.InsertMany(ctx, batch); err != nil {
		return fmt.Errorf("insert many into %s: %w", name, err)
	}
	return nil
}

// Find returns every document matching filter
func (c *Client) Find(ctx context.Context, name string, filter Filter) ([]domain.Record, error) {
	col, err := c.coll(name)
	if err != nil {
		return nil, err
	}
	cursor, err := col.Find(ctx, toBSON(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	out := make([]domain.Record, len(docs))
	for i, d := range docs {
		out[i] = domain.Record(d)
	}
	return out, nil
}

// FindOne returns the first matching document or ErrNotFound
func (c *Client) FindOne(ctx context.Context, name string, filter Filter) (domain.Record, error) {
	col, err := c.coll(name)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := col.FindOne(ctx, toBSON(filter)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find one in %s: %w", name, err)
	}
	return domain.Record(doc), nil
}

// Count counts documents matching filter
func (c *Client) Count(ctx context.Context, name string, filter Filter) (int64, error) {
	col, err := c.coll(name)
	if err != nil {
		return 0, err
	}
	n, err := col.CountDocuments(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return n, nil
}

// DeleteMany deletes documents matching filter and reports how many went away
func (c *Client) DeleteMany(ctx context.Context, name string, filter Filter) (int64, error) {
	col, err := c.coll(name)
	if err != nil {
		return 0, err
	}
	res, err := col.DeleteMany(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", name, err)
	}
	return res.DeletedCount, nil
}

// CreateIndex creates an ascending (compound) index. MongoDB treats re-creating
// an identical index as a no-op.
func (c *Client) CreateIndex(ctx context.Context, name string, keys []string, unique bool) (string, error) {
	col, err := c.coll(name)
	if err != nil {
		return "", err
	}
	spec := bson.D{}
	for _, k := range keys {
		spec = append(spec, bson.E{Key: k, Value: 1})
	}
	model := mongo.IndexModel{
		Keys:    spec,
		Options: options.Index().SetUnique(unique),
	}
	idx, err := col.Indexes().CreateOne(ctx, model)
	if err != nil {
		return "", fmt.Errorf("create index on %s: %w", name, err)
	}
	return idx, nil
}

func toBSON(f Filter) bson.M {
	if f == nil {
		return bson.M{}
	}
	return bson.M(f)
}
