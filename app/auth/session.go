package auth

import (
	"bitwise74/learnhub-api/internal"
	"bitwise74/learnhub-api/pkg/middleware"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// Session returns the current session. POST requests re-read the cached
// profile from the user row before answering
func Session(c *gin.Context, d *internal.Deps) {
	update := c.Request.Method == http.MethodPost

	sess, err := middleware.RefreshSession(c, d.Auth, d.Cookies, update)
	if err != nil {
		RespondError(c, d, err)
		return
	}

	c.JSON(http.StatusOK, sess.Session())
}

func Logout(c *gin.Context, d *internal.Deps) {
	middleware.ClearSessionCookies(c, d.Cookies)
	success(c, http.StatusOK, "Logged out!", nil)
}

func Providers(c *gin.Context, d *internal.Deps) {
	providers := d.Auth.Providers()
	slices.Sort(providers)

	c.JSON(http.StatusOK, gin.H{
		"providers": append([]string{"credentials"}, providers...),
	})
}
