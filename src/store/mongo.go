package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds connection settings for the MongoDB store.
type MongoConfig struct {
	URI      string // default "mongodb://localhost:27017"
	Database string // default "tui_chat"
}

// DefaultMongoConfig returns a MongoConfig with sensible defaults.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:      "mongodb://localhost:27017",
		Database: "tui_chat",
	}
}

// MongoConfigFromEnv loads MongoDB configuration from environment variables,
// falling back to defaults for any missing values.
func MongoConfigFromEnv() MongoConfig {
	cfg := DefaultMongoConfig()
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		cfg.URI = uri
	}
	if db := os.Getenv("MONGO_DATABASE"); db != "" {
		cfg.Database = db
	}
	return cfg
}

// MongoStore persists rooms and messages in MongoDB collections.
type MongoStore struct {
	client   *mongo.Client
	rooms    *mongo.Collection
	messages *mongo.Collection
}

type roomDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Slug      string             `bson:"slug"`
	CreatedAt time.Time          `bson:"created_at"`
}

type messageDocument struct {
	RoomID   string    `bson:"room_id"`
	Username string    `bson:"username"`
	Content  string    `bson:"content"`
	SentAt   time.Time `bson:"sent_at"`
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("store: connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	return &MongoStore{
		client:   client,
		rooms:    db.Collection("rooms"),
		messages: db.Collection("messages"),
	}, nil
}

// EnsureRoom upserts the room document for slug and returns its record.
func (s *MongoStore) EnsureRoom(ctx context.Context, slug string) (RoomRecord, error) {
	filter := bson.M{"slug": slug}
	update := bson.M{"$setOnInsert": bson.M{"slug": slug, "created_at": time.Now()}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc roomDocument
	if err := s.rooms.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return RoomRecord{}, fmt.Errorf("store: ensure room %q: %w", slug, err)
	}
	return RoomRecord{ID: doc.ID.Hex(), Slug: doc.Slug, CreatedAt: doc.CreatedAt}, nil
}

// AppendMessage inserts one message document.
func (s *MongoStore) AppendMessage(ctx context.Context, roomID, username, content string, sentAt time.Time) error {
	doc := messageDocument{
		RoomID:   roomID,
		Username: username,
		Content:  content,
		SentAt:   sentAt,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("store: disconnect mongodb: %w", err)
	}
	return nil
}
