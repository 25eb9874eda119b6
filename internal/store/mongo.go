package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"islamic-qa-platform/models"
)

const documentsCollection = "documents"

// MongoStore implements DocumentStore over a MongoDB collection.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{
		col: client.Database(dbName).Collection(documentsCollection),
	}
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

// GetBatch resolves ids to documents. Ids with no backing record are omitted
// from the result rather than reported as errors.
func (s *MongoStore) GetBatch(ctx context.Context, ids []string) (map[string]*models.Document, error) {
	if len(ids) == 0 {
		return map[string]*models.Document{}, nil
	}

	cursor, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("batch lookup: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]*models.Document, len(ids))
	for cursor.Next(ctx) {
		var doc models.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out[doc.ID] = &doc
	}
	return out, cursor.Err()
}

func (s *MongoStore) Insert(ctx context.Context, doc *models.Document) error {
	_, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("update document %s: %w", doc.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) FindByContentHash(ctx context.Context, hash string) (*models.Document, error) {
	var doc models.Document
	err := s.col.FindOne(ctx, bson.M{"content_hash": hash}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup by content hash: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) ListActive(ctx context.Context) ([]*models.Document, error) {
	cursor, err := s.col.Find(ctx, bson.M{"is_active": true})
	if err != nil {
		return nil, fmt.Errorf("list active documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*models.Document
	for cursor.Next(ctx) {
		var doc models.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, cursor.Err()
}

func (s *MongoStore) ListChangedSince(ctx context.Context, since time.Time) ([]*models.Document, error) {
	cursor, err := s.col.Find(ctx, bson.M{"updated_at": bson.M{"$gte": since}})
	if err != nil {
		return nil, fmt.Errorf("list changed documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*models.Document
	for cursor.Next(ctx) {
		var doc models.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, cursor.Err()
}

func (s *MongoStore) MarkEmbedded(ctx context.Context, id, version string) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"embedding_version": version},
	})
	if err != nil {
		return fmt.Errorf("mark embedded %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate flags a document out of retrieval. Documents are never hard
// deleted: the vector index must never point at a record that could vanish.
func (s *MongoStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
