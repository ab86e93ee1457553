package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

// OrphanCollection is the Mongo collection orphaned attachments are journaled to.
const OrphanCollection = "orphaned_attachments"

// MongoJournal appends orphaned attachment records for later manual cleanup.
type MongoJournal struct {
	coll *mongo.Collection
}

func NewMongoJournal(db *mongo.Database) *MongoJournal {
	return &MongoJournal{coll: db.Collection(OrphanCollection)}
}

func (j *MongoJournal) RecordOrphan(ctx context.Context, orphan models.OrphanedAttachment) error {
	if _, err := j.coll.InsertOne(ctx, orphan); err != nil {
		return fmt.Errorf("journal orphan %s: %w", orphan.Key, err)
	}
	return nil
}
