package auth

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionUserKey = "email"

// CookieManager signs and verifies the login cookie.
type CookieManager struct {
	store *sessions.CookieStore
	name  string
}

// NewCookieManager derives the signing key from the configured secret.
// maxAge is in seconds.
func NewCookieManager(secret, cookieName string, maxAge int) *CookieManager {
	key := sha256.Sum256([]byte(secret))
	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieManager{store: store, name: cookieName}
}

// SetUser writes the login cookie for email.
func (c *CookieManager) SetUser(w http.ResponseWriter, r *http.Request, email string) error {
	sess, _ := c.store.Get(r, c.name)
	sess.Values[sessionUserKey] = email
	return sess.Save(r, w)
}

// CurrentUser returns the email from a valid login cookie.
func (c *CookieManager) CurrentUser(r *http.Request) (string, bool) {
	sess, err := c.store.Get(r, c.name)
	if err != nil {
		return "", false
	}
	email, ok := sess.Values[sessionUserKey].(string)
	return email, ok && email != ""
}

// Clear expires the login cookie.
func (c *CookieManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := c.store.Get(r, c.name)
	sess.Options.MaxAge = -1
	delete(sess.Values, sessionUserKey)
	return sess.Save(r, w)
}
