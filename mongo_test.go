package main

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestMongoStore runs the store contract against a live server. Point
// BLOG_TEST_MONGO_URL at one, e.g. mongodb://127.0.0.1:27017.
func TestMongoStore(t *testing.T) {
	base := os.Getenv("BLOG_TEST_MONGO_URL")
	if base == "" {
		t.Skip("BLOG_TEST_MONGO_URL not set")
	}

	runStoreTests(t, func(t *testing.T) Store {
		t.Helper()
		name := "blogtest_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		s, err := openMongo(t.Context(), withDatabase(base, name))
		if err != nil {
			t.Fatalf("opening mongo store: %v", err)
		}
		t.Cleanup(func() {
			s.client.Database(name).Drop(context.Background())
			s.Close()
		})
		return s
	})
}

func TestWithDatabase(t *testing.T) {
	got := withDatabase("mongodb://127.0.0.1:27017/old?w=majority", "fresh")
	if got != "mongodb://127.0.0.1:27017/fresh?w=majority" {
		t.Errorf("withDatabase() = %q", got)
	}
	if name, _ := mongoDatabaseName(got); name != "fresh" {
		t.Errorf("expected database 'fresh', got %q", name)
	}
}

func TestMongoDatabaseName(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"mongodb://127.0.0.1:27017", "blogDB"},
		{"mongodb://127.0.0.1:27017/", "blogDB"},
		{"mongodb://127.0.0.1:27017/posts", "posts"},
		{"mongodb://user:pw@db1:27017,db2:27017/posts?replicaSet=rs0", "posts"},
		{"mongodb://127.0.0.1:27017/?authSource=admin", "blogDB"},
		{"mongodb+srv://cluster.example.com/blog?retryWrites=true", "blog"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := mongoDatabaseName(tt.uri)
			if err != nil {
				t.Fatalf("mongoDatabaseName() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("mongoDatabaseName() = %q, want %q", got, tt.want)
			}
		})
	}
}

// withDatabase swaps the database segment of a MongoDB URI, keeping hosts
// and options.
func withDatabase(uri, name string) string {
	scheme, rest, _ := strings.Cut(uri, "://")
	hosts, tail, _ := strings.Cut(rest, "/")
	_, query, hasQuery := strings.Cut(tail, "?")
	if !hasQuery {
		if h, q, ok := strings.Cut(hosts, "?"); ok {
			hosts, query, hasQuery = h, q, true
		}
	}
	out := scheme + "://" + hosts + "/" + name
	if hasQuery {
		out += "?" + query
	}
	return out
}

func TestOpenStore_MongoURL(t *testing.T) {
	// No host, so the driver rejects it before dialling anything.
	store, err := openStore(t.Context(), "mongodb://")
	if err == nil {
		store.Close()
		t.Fatal("expected an error for a mongodb url without a host")
	}
	if store != nil {
		t.Error("expected nil store on error")
	}
	if !strings.Contains(err.Error(), "mongodb") {
		t.Errorf("expected the mongo backend to handle the url, got %v", err)
	}
}

func TestMongoPost(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	doc := mongoPost{ID: "p1", Title: "Title", Content: "Body", Author: "alice", CreatedAt: created}

	want := Post{ID: "p1", Title: "Title", Content: "Body", Author: "alice", CreatedAt: created}
	if got := doc.post(); got != want {
		t.Errorf("post() = %+v, want %+v", got, want)
	}
}
