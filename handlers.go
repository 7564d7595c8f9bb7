package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
)

func (b *Blog) render(w http.ResponseWriter, page string, data map[string]any) {
	err := b.templates[page].ExecuteTemplate(w, "base", data)
	if err != nil {
		log.Printf("rendering %s: %v", page, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func serverError(w http.ResponseWriter, err error) {
	log.Printf("internal error: %v", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// ownedPost loads the post named in the path and checks that the current
// user wrote it. It writes the error response itself and returns nil when
// the request should stop.
func (b *Blog) ownedPost(w http.ResponseWriter, r *http.Request) *Post {
	post, err := b.store.GetPostByID(r.Context(), r.PathValue("id"))
	if err != nil {
		serverError(w, err)
		return nil
	}
	if post == nil {
		http.Error(w, "Blog not found", http.StatusNotFound)
		return nil
	}
	if user := currentUser(r); user == nil || post.Author != user.Username {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil
	}
	return post
}

func (b *Blog) Home(w http.ResponseWriter, r *http.Request) {
	posts, err := b.store.GetPosts(r.Context())
	if err != nil {
		serverError(w, err)
		return
	}

	b.render(w, "index.html", map[string]any{
		"Title":     "Home",
		"Posts":     posts,
		"User":      currentUser(r),
		"CSRFToken": b.ensureCSRFToken(w, r),
	})
}

func (b *Blog) New(w http.ResponseWriter, r *http.Request) {
	b.render(w, "new.html", map[string]any{
		"Title":     "New Post",
		"User":      currentUser(r),
		"CSRFToken": b.ensureCSRFToken(w, r),
	})
}

func (b *Blog) Create(w http.ResponseWriter, r *http.Request) {
	if !parseFormWithCSRF(w, r) {
		return
	}

	form := readPostForm(r)
	if err := b.validate.Struct(form); err != nil {
		http.Error(w, formError(err), http.StatusBadRequest)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		serverError(w, fmt.Errorf("generating post id: %w", err))
		return
	}

	post := Post{
		ID:        id.String(),
		Title:     form.Title,
		Content:   form.Content,
		Author:    currentUser(r).Username,
		CreatedAt: b.now(),
	}
	if err := b.store.CreatePost(r.Context(), post); err != nil {
		serverError(w, err)
		return
	}
	postsCreated.Inc()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (b *Blog) Show(w http.ResponseWriter, r *http.Request) {
	post, err := b.store.GetPostByID(r.Context(), r.PathValue("id"))
	if err != nil {
		serverError(w, err)
		return
	}
	if post == nil {
		http.Error(w, "Blog not found", http.StatusNotFound)
		return
	}

	user := currentUser(r)
	b.render(w, "show.html", map[string]any{
		"Title":     post.Title,
		"Post":      post,
		"User":      user,
		"IsAuthor":  user != nil && user.Username == post.Author,
		"CSRFToken": b.ensureCSRFToken(w, r),
	})
}

func (b *Blog) Edit(w http.ResponseWriter, r *http.Request) {
	post := b.ownedPost(w, r)
	if post == nil {
		return
	}

	b.render(w, "edit.html", map[string]any{
		"Title":     "Editing " + post.Title,
		"Post":      post,
		"User":      currentUser(r),
		"CSRFToken": b.ensureCSRFToken(w, r),
	})
}

func (b *Blog) Update(w http.ResponseWriter, r *http.Request) {
	if !parseFormWithCSRF(w, r) {
		return
	}

	post := b.ownedPost(w, r)
	if post == nil {
		return
	}

	form := readPostForm(r)
	if err := b.validate.Struct(form); err != nil {
		http.Error(w, formError(err), http.StatusBadRequest)
		return
	}

	err := b.store.UpdatePost(r.Context(), post.ID, form.Title, form.Content)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Blog not found", http.StatusNotFound)
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	http.Redirect(w, r, "/blogs/"+post.ID, http.StatusSeeOther)
}

func (b *Blog) Delete(w http.ResponseWriter, r *http.Request) {
	if !parseFormWithCSRF(w, r) {
		return
	}

	post := b.ownedPost(w, r)
	if post == nil {
		return
	}

	err := b.store.DeletePost(r.Context(), post.ID)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Blog not found", http.StatusNotFound)
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
