package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf"
	csrfFieldName     = "csrf_token"
)

type contextKey string

const userContextKey contextKey = "user"

func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (b *Blog) createSession(ctx context.Context, username string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	session := Session{
		Token:     token,
		Username:  username,
		ExpiresAt: b.now().Add(b.cfg.SessionTTL),
	}
	if err := b.store.CreateSession(ctx, session); err != nil {
		return "", err
	}

	return token, nil
}

// cleanupExpiredSessions removes sessions past their expiry and returns how
// many were deleted.
func (b *Blog) cleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := b.store.DeleteExpiredSessions(ctx, b.now())
	if err != nil {
		return 0, err
	}
	sessionsPurged.Add(float64(n))
	return n, nil
}

func (b *Blog) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   b.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(b.cfg.SessionTTL.Seconds()),
	})
}

func (b *Blog) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   b.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

// CSRF protection using double-submit cookie pattern

func (b *Blog) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   b.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(b.cfg.SessionTTL.Seconds()),
	})
}

func getCSRFToken(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func validateCSRF(r *http.Request) bool {
	cookieToken := getCSRFToken(r)
	formToken := r.FormValue(csrfFieldName)

	if cookieToken == "" || formToken == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}

func parseFormWithCSRF(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return false
	}
	if !validateCSRF(r) {
		http.Error(w, "Invalid CSRF token", http.StatusForbidden)
		return false
	}
	return true
}

// ensureCSRFToken returns existing token or creates a new one
func (b *Blog) ensureCSRFToken(w http.ResponseWriter, r *http.Request) string {
	token := getCSRFToken(r)
	if token != "" {
		return token
	}

	token, err := generateToken()
	if err != nil {
		log.Printf("generating csrf token: %v", err)
		return ""
	}
	b.setCSRFCookie(w, token)
	return token
}

// sessionUser resolves the session cookie to the user it belongs to. A
// missing, unknown or expired session yields nil.
func (b *Blog) sessionUser(r *http.Request) (*User, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	session, err := b.store.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	return &User{Username: session.Username}, nil
}

// requireAuth is middleware that protects routes requiring authentication
func (b *Blog) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := b.sessionUser(r)
		if err != nil {
			log.Printf("looking up session: %v", err)
		}
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next(w, withUser(r, user))
	}
}

func withUser(r *http.Request, user *User) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, user))
}

// currentUser returns the user attached by requireAuth, or nil.
func currentUser(r *http.Request) *User {
	user, _ := r.Context().Value(userContextKey).(*User)
	return user
}
