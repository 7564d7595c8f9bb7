package main

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *SQLiteStore) GetPosts(ctx context.Context) ([]Post, error) {
	query := "SELECT id, title, content, author, created_at FROM blogs ORDER BY created_at DESC, id DESC"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var post Post
		err := rows.Scan(&post.ID, &post.Title, &post.Content, &post.Author, &post.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, post)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}

func (s *SQLiteStore) GetPostByID(ctx context.Context, id string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, author, created_at
		FROM blogs
		WHERE id = ?`, id)

	var post Post
	err := row.Scan(&post.ID, &post.Title, &post.Content, &post.Author, &post.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post %q: %w", id, err)
	}

	return &post, nil
}

func (s *SQLiteStore) CreatePost(ctx context.Context, post Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blogs (id, title, content, author, created_at)
		VALUES (?, ?, ?, ?, ?)`, post.ID, post.Title, post.Content, post.Author, post.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePost(ctx context.Context, id, title, content string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE blogs
		SET title = ?, content = ?
		WHERE id = ?`, title, content, id)
	if err != nil {
		return fmt.Errorf("updating post %q: %w", id, err)
	}
	return requireAffected(result)
}

func (s *SQLiteStore) DeletePost(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM blogs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting post %q: %w", id, err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
