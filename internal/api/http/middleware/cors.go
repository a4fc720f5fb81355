package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsHeaders = []string{"Content-Type", "Authorization"}
)

// CORS sets permissive CORS headers on every response, with or without an
// Origin header. Preflights carrying an Origin are answered by gin-contrib/cors.
func CORS() gin.HandlerFunc {
	preflight := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    corsMethods,
		AllowHeaders:    corsHeaders,
	})
	methods := strings.Join(corsMethods, ", ")
	headers := strings.Join(corsHeaders, ", ")

	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		preflight(c)
	}
}
