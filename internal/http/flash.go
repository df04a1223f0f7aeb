package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "expense_flash"

// setFlash stores validation messages for the next page render.
func setFlash(w http.ResponseWriter, messages []string) {
	data, err := json.Marshal(messages)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the stored messages, if any, and clears the cookie.
// A tampered or stale cookie yields nothing.
func popFlash(w http.ResponseWriter, r *http.Request) []string {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var messages []string
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil
	}
	return messages
}
