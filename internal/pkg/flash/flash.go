// Package flash carries one-shot status messages between redirects, the
// way the pages surface registration and login outcomes.
package flash

import (
	"net/url"

	"github.com/gin-gonic/gin"
)

const flashCookieName = "flash"

// Set stores a one-shot status message for the next page render.
func Set(c *gin.Context, message string) {
	c.SetCookie(flashCookieName, url.QueryEscape(message), 60, "/", "", false, true)
}

// Pop returns the pending flash message, if any, and clears it.
func Pop(c *gin.Context) string {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return ""
	}
	c.SetCookie(flashCookieName, "", -1, "/", "", false, true)
	message, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return message
}
