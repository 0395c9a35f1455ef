package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type MongoDBClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDBClient connects to MongoDB and disconnects on shutdown. Thesis
// submissions and automation batches run in multi-document transactions, so
// the deployment must be a replica set.
func NewMongoDBClient(lc fx.Lifecycle, cfg *AppConfig, logger *zap.Logger) (*MongoDBClient, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(cfg.MongoURI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, errors.Wrap(err, "ping MongoDB")
	}

	logger.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			logger.Info("Closing MongoDB connection ...")
			return client.Disconnect(stopCtx)
		},
	})
	db := client.Database(cfg.MongoDatabase)
	return &MongoDBClient{Client: client, Database: db}, db, nil
}

// EnsureIndexes creates the indexes the workflow queries rely on.
func EnsureIndexes(lc fx.Lifecycle, db *mongo.Database, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			users := db.Collection("users")
			if _, err := users.Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "student.nim", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
				{Keys: bson.D{{Key: "role", Value: 1}, {Key: "lecturer.expertise_field", Value: 1}}},
			}); err != nil {
				return errors.Wrap(err, "create user indexes")
			}

			for _, name := range []string{"proposals", "results", "defenses"} {
				if _, err := db.Collection(name).Indexes().CreateMany(ctx, []mongo.IndexModel{
					{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "submitted_at", Value: -1}}},
					{Keys: bson.D{{Key: "stage", Value: 1}}},
				}); err != nil {
					return errors.Wrapf(err, "create %s indexes", name)
				}
			}
			if _, err := db.Collection("notifications").Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys: bson.D{{Key: "status", Value: 1}, {Key: "send_time", Value: 1}},
			}); err != nil {
				return errors.Wrap(err, "create notification indexes")
			}
			logger.Info("MongoDB indexes ensured")
			return nil
		},
	})
}

func (c *MongoDBClient) GetCollection(collectionName string) *mongo.Collection {
	return c.Database.Collection(collectionName)
}
