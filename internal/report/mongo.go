package report

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MatchCollection is the collection results are stored in.
const MatchCollection = "match_results"

// MongoReporter stores one document per match.
type MongoReporter struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri and uses database db.
func OpenMongo(ctx context.Context, uri, db string) (*MongoReporter, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	log.Infof("Successfully connected to MongoDB")
	return &MongoReporter{
		client: client,
		coll:   client.Database(db).Collection(MatchCollection),
	}, nil
}

// Report implements Reporter. Results are upserted by game id so a retried
// report does not duplicate the match.
func (m *MongoReporter) Report(ctx context.Context, r MatchResult) error {
	_, err := m.coll.ReplaceOne(ctx,
		bson.M{"game_id": r.GameID},
		r,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store match %s: %w", r.GameID, err)
	}
	log.Debugf("Match %s saved to MongoDB", r.GameID)
	return nil
}

// Close disconnects the client.
func (m *MongoReporter) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
