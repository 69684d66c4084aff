package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

var publicPaths = map[string]bool{
	"/health":     true,
	"/auth/token": true,
}

// AuthSkipper reports whether a request bypasses authentication: public
// infrastructure routes and CORS preflight requests, which never carry
// credentials.
func AuthSkipper(c echo.Context) bool {
	if c.Request().Method == http.MethodOptions && c.Request().Header.Get("Access-Control-Request-Method") != "" {
		return true
	}
	return publicPaths[c.Path()]
}
