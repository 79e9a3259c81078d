package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/raushankrgupta/fashionfit/models"
)

const currentUserDoc = "current_user"

// ConnectMongo opens and pings a MongoDB connection.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// MongoSessions stores one document per try-on in the "tryons" collection.
type MongoSessions struct {
	mu   sync.Mutex
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoSessions(db *mongo.Database) *MongoSessions {
	return &MongoSessions{coll: db.Collection("tryons"), now: time.Now}
}

func (m *MongoSessions) Save(ctx context.Context, in models.NewTryOn) (models.TryOnSession, error) {
	if err := validate(in); err != nil {
		return models.TryOnSession{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var last models.TryOnSession
	err := m.coll.FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})).Decode(&last)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return models.TryOnSession{}, fmt.Errorf("failed to read last session: %w", err)
	}

	sess := in.Session(newSessionID(), stamp(m.now(), last.Timestamp))
	if _, err := m.coll.InsertOne(ctx, sess); err != nil {
		return models.TryOnSession{}, fmt.Errorf("failed to insert session: %w", err)
	}
	return sess, nil
}

func (m *MongoSessions) List(ctx context.Context) ([]models.TryOnSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := []models.TryOnSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

// MongoProfiles keeps profiles in "users" and the current-user pointer in "app_state".
type MongoProfiles struct {
	users *mongo.Collection
	state *mongo.Collection
}

func NewMongoProfiles(db *mongo.Database) *MongoProfiles {
	return &MongoProfiles{users: db.Collection("users"), state: db.Collection("app_state")}
}

type currentPointer struct {
	ID  string `bson:"_id"`
	UID string `bson:"uid"`
}

func (m *MongoProfiles) Current(ctx context.Context) (*models.UserProfile, error) {
	var ptr currentPointer
	err := m.state.FindOne(ctx, bson.M{"_id": currentUserDoc}).Decode(&ptr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read current user: %w", err)
	}

	p, err := m.FindByID(ctx, ptr.UID)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	return p, err
}

func (m *MongoProfiles) SetCurrent(ctx context.Context, p models.UserProfile) error {
	if err := m.Put(ctx, p); err != nil {
		return err
	}
	_, err := m.state.ReplaceOne(ctx,
		bson.M{"_id": currentUserDoc},
		currentPointer{ID: currentUserDoc, UID: p.UID},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set current user: %w", err)
	}
	return nil
}

func (m *MongoProfiles) ClearCurrent(ctx context.Context) error {
	if _, err := m.state.DeleteOne(ctx, bson.M{"_id": currentUserDoc}); err != nil {
		return fmt.Errorf("failed to clear current user: %w", err)
	}
	return nil
}

func (m *MongoProfiles) FindByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return m.findOne(ctx, bson.M{"email": email})
}

func (m *MongoProfiles) FindByID(ctx context.Context, uid string) (*models.UserProfile, error) {
	return m.findOne(ctx, bson.M{"_id": uid})
}

func (m *MongoProfiles) findOne(ctx context.Context, filter bson.M) (*models.UserProfile, error) {
	var p models.UserProfile
	err := m.users.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &p, nil
}

func (m *MongoProfiles) Put(ctx context.Context, p models.UserProfile) error {
	_, err := m.users.ReplaceOne(ctx, bson.M{"_id": p.UID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
