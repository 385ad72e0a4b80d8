package routes

import (
	"log/slog"
	"slices"
	"time"

	"inksnap-backend/config"
	"inksnap-backend/controllers"
	"inksnap-backend/services"
	"inksnap-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers are the controllers the router mounts.
type Handlers struct {
	Auth          *controllers.AuthController
	Conversations *controllers.ConversationController
	Bookings      *controllers.BookingController
	Profiles      *controllers.ProfileController
	Uploads       *controllers.UploadController
	Realtime      *controllers.RealtimeController
}

func NewHandlers(cfg *config.Config, deps services.Deps) *Handlers {
	profiles := services.NewProfileService(deps.Store, deps.Storage, deps.Logger)
	return &Handlers{
		Auth: &controllers.AuthController{
			Auth:     services.NewAuthService(deps.Store, cfg.JWT.Secret, cfg.JWT.Expiry()),
			Profiles: profiles,
		},
		Conversations: &controllers.ConversationController{
			Deps:   deps,
			Sender: services.NewMessageSender(deps.Store, deps.Storage, deps.Logger),
		},
		Bookings: &controllers.BookingController{Deps: deps},
		Profiles: &controllers.ProfileController{
			Profiles: profiles,
			Reviews:  services.NewReviewService(deps.Store),
			Follows:  services.NewFollowService(deps.Store),
			Posts:    services.NewPostService(deps.Store, deps.Storage, deps.Logger),
		},
		Uploads: &controllers.UploadController{Storage: deps.Storage},
		Realtime: &controllers.RealtimeController{
			Deps:               deps,
			JWTSecret:          cfg.JWT.Secret,
			OriginPatterns:     cfg.Server.AllowedOrigins,
			InsecureSkipVerify: !cfg.IsProduction(),
		},
	}
}

func SetupRouter(cfg *config.Config, h *Handlers, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	origins := cfg.Server.AllowedOrigins
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) bool {
			return slices.Contains(origins, origin)
		},
		MaxAge: 12 * time.Hour,
	}))

	r.Use(config.PerformanceLogger(log))

	r.Static("/media", cfg.Storage.Dir)
	r.GET("/realtime", h.Realtime.Handle)

	authRequired := utils.AuthMiddleware(cfg.JWT.Secret)

	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)

		auth.Use(authRequired)
		auth.GET("/me", h.Auth.Me)
		auth.PUT("/profile", h.Auth.UpdateProfile)
		auth.PUT("/profile/reminder-template", h.Auth.UpdateReminderTemplate)
		auth.DELETE("/account", h.Auth.DeleteAccount)
	}

	api := r.Group("/api")
	api.Use(authRequired)
	{
		conversations := api.Group("/conversations")
		{
			conversations.GET("", h.Conversations.List)
			conversations.POST("", h.Conversations.Start)
			conversations.GET("/:id/messages", h.Conversations.Messages)
			conversations.POST("/:id/messages", h.Conversations.Send)
			conversations.POST("/:id/read", h.Conversations.MarkRead)
		}
		api.GET("/unread", h.Conversations.Unread)

		bookings := api.Group("/bookings")
		{
			bookings.GET("/artist", h.Bookings.ListForArtist)
			bookings.GET("/client", h.Bookings.ListForClient)
			bookings.GET("/with/:id", h.Bookings.Between)
			bookings.POST("", h.Bookings.Create)
			bookings.POST("/:id/:action", h.Bookings.Transition)
		}

		profiles := api.Group("/profiles/:id")
		{
			profiles.GET("", h.Profiles.Artist)
			profiles.GET("/reviews", h.Profiles.ListReviews)
			profiles.POST("/reviews", h.Profiles.CreateReview)
			profiles.POST("/follow", h.Profiles.Follow)
			profiles.DELETE("/follow", h.Profiles.Unfollow)
			profiles.GET("/posts", h.Profiles.ListPosts)
		}
		api.POST("/posts", h.Profiles.CreatePost)
		api.DELETE("/posts/:id", h.Profiles.DeletePost)

		api.POST("/uploads", h.Uploads.Upload)
		api.DELETE("/uploads/*ref", h.Uploads.Delete)

		api.GET("/dashboard", h.Profiles.Dashboard)
	}

	return r
}
