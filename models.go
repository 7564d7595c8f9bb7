package main

import "time"

type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type Post struct {
	ID        string
	Title     string
	Content   string
	Author    string
	CreatedAt time.Time
}

type Session struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}
