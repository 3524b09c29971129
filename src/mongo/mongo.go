package mongo

import (
	"context"

	"github.com/admiralbulldogtv/yapperqueue/src/datastructures"
	instance "github.com/admiralbulldogtv/yapperqueue/src/instances"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNoDocuments is returned by the Fetch methods when nothing matched.
var ErrNoDocuments = mongo.ErrNoDocuments

const (
	CollectionOverlays         = "overlays"
	CollectionAudioConfigs     = "audio_configs"
	CollectionVoiceAssignments = "voice_assignments"
	CollectionAudio            = "audio"
)

type mongoInstance struct {
	c  *mongo.Client
	db *mongo.Database
}

func (i *mongoInstance) Ping(ctx context.Context) error {
	return i.c.Ping(ctx, nil)
}

func (i *mongoInstance) FetchOverlay(ctx context.Context, token primitive.ObjectID) (datastructures.Overlay, error) {
	o := datastructures.Overlay{}
	res := i.db.Collection(CollectionOverlays).FindOne(ctx, bson.M{"_id": token})
	err := res.Err()
	if err == nil {
		err = res.Decode(&o)
	}
	return o, err
}

func (i *mongoInstance) FetchVoices(ctx context.Context) ([]datastructures.AudioConfig, error) {
	vcs := []datastructures.AudioConfig{}
	cur, err := i.db.Collection(CollectionAudioConfigs).Find(ctx, bson.M{})
	if err == nil {
		err = cur.All(ctx, &vcs)
	}
	return vcs, err
}

func (i *mongoInstance) FetchVoiceAssignment(ctx context.Context, requesterID string) (datastructures.VoiceAssignment, error) {
	va := datastructures.VoiceAssignment{}
	res := i.db.Collection(CollectionVoiceAssignments).FindOne(ctx, bson.M{"requester_id": requesterID})
	err := res.Err()
	if err == nil {
		err = res.Decode(&va)
	}
	return va, err
}

func (i *mongoInstance) InsertAudio(ctx context.Context, audio datastructures.Audio) error {
	_, err := i.db.Collection(CollectionAudio).InsertOne(ctx, audio)
	return err
}

func (i *mongoInstance) Close(ctx context.Context) error {
	return i.c.Disconnect(ctx)
}

func NewInstance(ctx context.Context, uri, db string) (instance.Mongo, error) {
	c, err := mongo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	i := &mongoInstance{
		c:  c,
		db: c.Database(db),
	}

	if err = c.Connect(ctx); err != nil {
		return nil, err
	}

	if err = i.Ping(ctx); err != nil {
		return nil, err
	}

	return i, nil
}
