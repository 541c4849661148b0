// Package transcript persists finished conversation turns to MongoDB so that
// transcripts survive call eviction. Archiving is best effort: the live call
// path never waits on Mongo and never fails because of it.
package transcript

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	appmongo "github.com/Sunil-1234/Virtual-call-assistant/pkg/mongo"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/session"
)

const (
	collectionName = "transcripts"
	writeTimeout   = 5 * time.Second
	queueSize      = 256
)

type record struct {
	callSid string
	turn    session.Turn
}

// Archiver writes turns to the transcripts collection from a background
// worker. A nil Archiver is valid and drops everything, which keeps the
// callers free of Mongo-is-configured checks.
type Archiver struct {
	db     *appmongo.Client
	logger *zap.Logger
	queue  chan record
	done   chan struct{}
}

func NewArchiver(db *appmongo.Client, logger *zap.Logger) *Archiver {
	a := &Archiver{
		db:     db,
		logger: logger,
		queue:  make(chan record, queueSize),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Archive enqueues a turn for persistence. Drops the turn when the queue is
// full rather than blocking the voice webhook.
func (a *Archiver) Archive(callSid string, turn session.Turn) {
	if a == nil {
		return
	}
	select {
	case a.queue <- record{callSid: callSid, turn: turn}:
	default:
		a.logger.Warn("transcript queue full, dropping turn",
			zap.String("call_sid", callSid),
			zap.String("turn_id", turn.ID),
		)
	}
}

// Close stops the worker after draining queued turns.
func (a *Archiver) Close() {
	if a == nil {
		return
	}
	close(a.queue)
	<-a.done
}

func (a *Archiver) run() {
	defer close(a.done)
	for rec := range a.queue {
		a.write(rec)
	}
}

func (a *Archiver) write(rec record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	doc := bson.M{
		"call_sid":  rec.callSid,
		"turn_id":   rec.turn.ID,
		"utterance": rec.turn.Utterance,
		"reply":     rec.turn.Reply,
		"at":        rec.turn.At,
	}
	_, err := a.db.Collection(collectionName).InsertOne(ctx, doc)
	if err != nil {
		a.logger.Error("failed to archive turn",
			zap.String("call_sid", rec.callSid),
			zap.String("turn_id", rec.turn.ID),
			zap.Error(err),
		)
	}
}

// Transcript is one archived turn as read back from Mongo.
type Transcript struct {
	CallSid   string    `bson:"call_sid" json:"call_sid"`
	TurnID    string    `bson:"turn_id" json:"turn_id"`
	Utterance string    `bson:"utterance" json:"utterance"`
	Reply     string    `bson:"reply" json:"reply"`
	At        time.Time `bson:"at" json:"at"`
}

// Fetch returns the archived turns for a call in chronological order.
func (a *Archiver) Fetch(ctx context.Context, callSid string) ([]Transcript, error) {
	if a == nil {
		return nil, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: 1}})
	cur, err := a.db.Collection(collectionName).Find(ctx, bson.M{"call_sid": callSid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Transcript
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes every archived turn for a call.
func (a *Archiver) Delete(ctx context.Context, callSid string) (int64, error) {
	if a == nil {
		return 0, nil
	}
	res, err := a.db.Collection(collectionName).DeleteMany(ctx, bson.M{"call_sid": callSid})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
