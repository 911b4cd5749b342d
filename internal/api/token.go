// Package api adapts HTTP requests to the envvars.RequestContext contract.
// Authentication stays with the surrounding web service; these adapters
// only read the token it already checked.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qserverless/gatewayenv/internal/envvars"
)

// requestContextKey is the gin context key set by Middleware.
const requestContextKey = "gatewayenv.request"

// Authorization header schemes carrying a gateway token.
var tokenSchemes = []string{"Bearer", "Token"}

// TokenFromHeader extracts the token from an Authorization header value of
// the form "Bearer <token>" or "Token <token>". Anything else yields "".
func TokenFromHeader(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return ""
	}
	for _, s := range tokenSchemes {
		if strings.EqualFold(scheme, s) {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// FromHTTP returns the RequestContext of r.
func FromHTTP(r *http.Request) envvars.RequestContext {
	if r == nil {
		return envvars.Token("")
	}
	return envvars.Token(TokenFromHeader(r.Header.Get("Authorization")))
}

// FromGin returns the RequestContext of c, preferring the one stored by
// Middleware.
func FromGin(c *gin.Context) envvars.RequestContext {
	if v, ok := c.Get(requestContextKey); ok {
		if rc, ok := v.(envvars.RequestContext); ok {
			return rc
		}
	}
	return FromHTTP(c.Request)
}

// Middleware stores the request token on the gin context so handlers
// further down the chain can call FromGin.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestContextKey, FromHTTP(c.Request))
		c.Next()
	}
}
