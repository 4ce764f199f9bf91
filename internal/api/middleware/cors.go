package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines cross-origin access to the daemon API.
type CORSConfig struct {
	// AllowOrigins lists origins a browser dashboard may call from.
	// "*" allows any origin; credentials stay off so a wildcard remains
	// valid to browsers.
	AllowOrigins []string
	MaxAge       time.Duration
}

// DefaultCORSConfig permits any origin. The daemon binds loopback by
// default, so the wildcard only reaches local pages until the listen
// address is widened.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		MaxAge:       12 * time.Hour,
	}
}

// CORS creates the CORS middleware for the API routes.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 12 * time.Hour
	}
	return cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Accept",
			"Origin",
			"Authorization",
			"X-Requested-With",
		},
		MaxAge: cfg.MaxAge,
	})
}
