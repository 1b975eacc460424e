package services

import (
	"context"
	"fmt"
	"time"

	"pdf-rag-chatbot/models"
	"pdf-rag-chatbot/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// documentRecord is the persisted shape of a Document. Large full text is
// stored brotli-compressed to stay well under the 16MB document limit.
type documentRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Filename     string             `bson:"filename"`
	FullText     string             `bson:"full_text,omitempty"`
	FullTextBlob []byte             `bson:"full_text_blob,omitempty"`
	Compression  string             `bson:"compression,omitempty"`
	Chunks       []string           `bson:"chunks"`
	ChunkCount   int                `bson:"chunk_count"`
	TextLength   int                `bson:"text_length"`
	CreatedAt    time.Time          `bson:"created_at"`
}

// MongoStore is the durable document store backed by one collection.
type MongoStore struct {
	collection        *mongo.Collection
	deleteBatchSize   int
	compressThreshold int
}

func NewMongoStore(collection *mongo.Collection, deleteBatchSize, compressThreshold int) *MongoStore {
	if deleteBatchSize <= 0 {
		deleteBatchSize = 500
	}
	return &MongoStore{
		collection:        collection,
		deleteBatchSize:   deleteBatchSize,
		compressThreshold: compressThreshold,
	}
}

// Put upserts the document by filename. created_at is set by the server.
func (s *MongoStore) Put(ctx context.Context, doc models.Document) error {
	ctx, cancel := utils.WithWriteTimeout(ctx)
	defer cancel()

	set := bson.M{
		"filename":    doc.Filename,
		"chunks":      doc.Chunks,
		"chunk_count": len(doc.Chunks),
		"text_length": len([]rune(doc.FullText)),
	}
	unset := bson.M{}

	data, algo, err := utils.CompressText(doc.FullText, s.compressThreshold)
	if err != nil {
		return fmt.Errorf("compress full text: %w", err)
	}
	if algo == utils.CompressionNone {
		set["full_text"] = doc.FullText
		unset["full_text_blob"] = ""
		unset["compression"] = ""
	} else {
		set["full_text_blob"] = data
		set["compression"] = string(algo)
		unset["full_text"] = ""
	}

	update := bson.M{
		"$set":         set,
		"$unset":       unset,
		"$currentDate": bson.M{"created_at": true},
	}

	_, err = s.collection.UpdateOne(ctx,
		bson.M{"filename": doc.Filename},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

// List returns every document in insertion order.
func (s *MongoStore) List(ctx context.Context) ([]models.Document, error) {
	ctx, cancel := utils.WithScanTimeout(ctx)
	defer cancel()

	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []documentRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(records))
	for _, rec := range records {
		doc, err := rec.toDocument()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.Filename, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// DeleteAll removes up to one batch of documents.
func (s *MongoStore) DeleteAll(ctx context.Context) (int, error) {
	ctx, cancel := utils.WithScanTimeout(ctx)
	defer cancel()

	cursor, err := s.collection.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}).SetLimit(int64(s.deleteBatchSize)))
	if err != nil {
		return 0, err
	}

	var ids []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &ids); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	batch := make([]primitive.ObjectID, len(ids))
	for i, id := range ids {
		batch[i] = id.ID
	}

	res, err := s.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": batch}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (rec documentRecord) toDocument() (models.Document, error) {
	text := rec.FullText
	if len(rec.FullTextBlob) > 0 {
		var err error
		text, err = utils.DecompressText(rec.FullTextBlob, utils.CompressionAlgorithm(rec.Compression))
		if err != nil {
			return models.Document{}, err
		}
	}
	return models.Document{
		Filename:  rec.Filename,
		FullText:  text,
		Chunks:    rec.Chunks,
		CreatedAt: rec.CreatedAt,
	}, nil
}
