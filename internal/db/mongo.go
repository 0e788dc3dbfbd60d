package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"coupon_spider/internal/config"
	"coupon_spider/internal/models"
)

type MongoDB struct {
	client        *mongo.Client
	database      *mongo.Database
	documents     *mongo.Collection
	spiderHistory *mongo.Collection
}

func NewMongoDB(ctx context.Context, cfg config.DBConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	d := &MongoDB{
		client:        client,
		database:      db,
		documents:     db.Collection(cfg.Collections.Documents),
		spiderHistory: db.Collection(cfg.Collections.SpiderHistory),
	}

	if err := d.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't create indices: %w", err)
	}

	return d, nil
}

func (d *MongoDB) createIndexes(ctx context.Context) error {
	_, err := d.documents.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "normalized_url", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "last_scraped", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("documents: %w", err)
	}

	_, err = d.spiderHistory.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "status", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("spider_history: %w", err)
	}
	return nil
}

// SaveDocument upserts doc by normalized URL, keeping the first_scraped of
// an existing entry and bumping its scraped_count.
func (d *MongoDB) SaveDocument(ctx context.Context, doc *models.Document) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update, err := documentUpdate(doc)
	if err != nil {
		return err
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"normalized_url": doc.NormalizedURL}

	_, err = d.documents.UpdateOne(ctx, filter, update, opts)
	return err
}

func documentUpdate(doc *models.Document) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var set bson.M
	if err := bson.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}

	delete(set, "_id")
	delete(set, "scraped_count")
	delete(set, "first_scraped")

	return bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"first_scraped": doc.FirstScraped},
		"$inc":         bson.M{"scraped_count": 1},
	}, nil
}

func (d *MongoDB) SaveSpiderHistory(ctx context.Context, history *models.CrawlHistory) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := d.spiderHistory.InsertOne(ctx, history)
	return err
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}
