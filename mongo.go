package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultMongoDatabase = "blogDB"

type mongoUser struct {
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type mongoPost struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Content   string    `bson:"content"`
	Author    string    `bson:"author"`
	CreatedAt time.Time `bson:"createdAt"`
}

type mongoSession struct {
	Token     string    `bson:"_id"`
	Username  string    `bson:"username"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// MongoStore keeps users, blogs and sessions as three collections in one
// database.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	blogs    *mongo.Collection
	sessions *mongo.Collection
}

func openMongo(ctx context.Context, uri string) (*MongoStore, error) {
	name, err := mongoDatabaseName(uri)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(name)
	s := &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		blogs:    db.Collection("blogs"),
		sessions: db.Collection("sessions"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

// mongoDatabaseName returns the database named in the URI path, or the
// default when the path is empty. The host list may hold several
// comma-separated hosts, which net/url cannot parse.
func mongoDatabaseName(uri string) (string, error) {
	_, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "", fmt.Errorf("parsing mongodb url: missing scheme")
	}
	_, path, ok := strings.Cut(rest, "/")
	if !ok {
		return defaultMongoDatabase, nil
	}
	path, _, _ = strings.Cut(path, "?")

	name, err := url.PathUnescape(path)
	if err != nil {
		return "", fmt.Errorf("parsing mongodb url: %w", err)
	}
	if name == "" {
		return defaultMongoDatabase, nil
	}
	return name, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating users index: %w", err)
	}

	_, err = s.blogs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("creating blogs index: %w", err)
	}

	// The server also reaps expired sessions on its own.
	_, err = s.sessions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("creating sessions index: %w", err)
	}

	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.users.InsertOne(ctx, mongoUser{
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, username string) (*User, error) {
	var doc mongoUser
	err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &User{Username: doc.Username, PasswordHash: doc.PasswordHash, CreatedAt: doc.CreatedAt}, nil
}

func (s *MongoStore) CreatePost(ctx context.Context, post Post) error {
	_, err := s.blogs.InsertOne(ctx, mongoPost{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Author:    post.Author,
		CreatedAt: post.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

func (s *MongoStore) GetPosts(ctx context.Context) ([]Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.blogs.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer cur.Close(ctx)

	var posts []Post
	for cur.Next(ctx) {
		var doc mongoPost
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding post: %w", err)
		}
		posts = append(posts, doc.post())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *MongoStore) GetPostByID(ctx context.Context, id string) (*Post, error) {
	var doc mongoPost
	err := s.blogs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding post %q: %w", id, err)
	}
	post := doc.post()
	return &post, nil
}

func (s *MongoStore) UpdatePost(ctx context.Context, id, title, content string) error {
	result, err := s.blogs.UpdateByID(ctx, id, bson.M{"$set": bson.M{"title": title, "content": content}})
	if err != nil {
		return fmt.Errorf("updating post %q: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeletePost(ctx context.Context, id string) error {
	result, err := s.blogs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting post %q: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CreateSession(ctx context.Context, session Session) error {
	_, err := s.sessions.InsertOne(ctx, mongoSession{
		Token:     session.Token,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// GetSession filters on expiresAt as well; the TTL monitor only runs once a
// minute.
func (s *MongoStore) GetSession(ctx context.Context, token string) (*Session, error) {
	var doc mongoSession
	filter := bson.M{"_id": token, "expiresAt": bson.M{"$gt": time.Now().UTC()}}
	err := s.sessions.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return &Session{Token: doc.Token, Username: doc.Username, ExpiresAt: doc.ExpiresAt}, nil
}

func (s *MongoStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.sessions.DeleteOne(ctx, bson.M{"_id": token}); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.sessions.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("cleaning up expired sessions: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (d mongoPost) post() Post {
	return Post{ID: d.ID, Title: d.Title, Content: d.Content, Author: d.Author, CreatedAt: d.CreatedAt}
}
