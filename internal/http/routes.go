package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/postwall/internal/ws"
)

// uploadBodySlack leaves room for the other multipart fields next to the image.
const uploadBodySlack = 1 << 20

// SetupRoutes configures all application routes and middleware.
func SetupRoutes(router *gin.Engine, env *Env) {

	// --- Middleware ---

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())

	corsOrigin := env.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: corsOrigin != "*",
	}))

	requireAuth := AuthMiddleware(env.Validator, env.Profiles)
	limitBody := BodyLimitMiddleware(env.MaxUploadBytes + uploadBodySlack)

	// Writes that create content are rate limited per caller.
	writeLimit := func(c *gin.Context) { c.Next() }
	if env.Limiter != nil {
		writeLimit = RateLimitMiddleware(env.Limiter)
	}

	// --- API Routes ---

	api := router.Group("/api")
	{
		api.GET("/posts", env.GetPosts)
		api.GET("/posts/:id", env.GetPost)
		api.POST("/posts", requireAuth, writeLimit, limitBody, env.CreatePost)
		api.PUT("/posts/:id/like", requireAuth, env.ToggleLike)
		api.POST("/posts/:id/comment", requireAuth, writeLimit, env.AddComment)
		api.PUT("/posts/:id", requireAuth, limitBody, env.UpdatePost)
		api.DELETE("/posts/:id", requireAuth, env.DeletePost)
	}

	// --- Health ---

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Social Post API is running!"})
	})
	router.GET("/healthz", env.Healthz)

	// --- WebSocket Route ---

	if env.Hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			ws.ServeWs(env.Hub, c.Writer, c.Request)
		})
	}

	// --- Uploaded images ---

	if env.UploadDir != "" {
		router.Static("/uploads", env.UploadDir)
	}
}
