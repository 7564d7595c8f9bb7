package main

import (
	"errors"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "Invalid username or password"

func (b *Blog) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		b.render(w, "register.html", map[string]any{
			"Title":     "Register",
			"CSRFToken": b.ensureCSRFToken(w, r),
		})
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !parseFormWithCSRF(w, r) {
		return
	}

	form := readCredentials(r)
	if err := b.validate.Struct(form); err != nil {
		http.Error(w, formError(err), http.StatusBadRequest)
		return
	}

	hash, err := hashPassword(form.Password, b.cfg.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		http.Error(w, "Password is too long", http.StatusBadRequest)
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}

	err = b.store.CreateUser(r.Context(), User{
		Username:     form.Username,
		PasswordHash: hash,
		CreatedAt:    b.now(),
	})
	if errors.Is(err, ErrDuplicateUser) {
		http.Error(w, "Username already taken", http.StatusConflict)
		return
	}
	if err != nil {
		serverError(w, err)
		return
	}
	registrations.Inc()

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (b *Blog) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		b.render(w, "login.html", map[string]any{
			"Title":     "Login",
			"CSRFToken": b.ensureCSRFToken(w, r),
		})
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !parseFormWithCSRF(w, r) {
		return
	}

	form := readCredentials(r)
	user, err := b.store.GetUser(r.Context(), form.Username)
	if err != nil {
		serverError(w, err)
		return
	}

	hash := b.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if !checkPassword(hash, form.Password) || user == nil {
		loginAttempts.WithLabelValues("failure").Inc()
		http.Error(w, invalidCredentials, http.StatusUnauthorized)
		return
	}

	token, err := b.createSession(r.Context(), user.Username)
	if err != nil {
		serverError(w, err)
		return
	}
	loginAttempts.WithLabelValues("success").Inc()

	b.setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout ends the session. The nav posts a CSRF-checked form; a bare GET is
// still honoured for links but refused when the browser marks it cross-site.
func (b *Blog) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if !parseFormWithCSRF(w, r) {
			return
		}
	} else if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := b.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			log.Printf("deleting session: %v", err)
		}
	}

	b.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
