package api

import (
	"net/http"

	"fitsync/settings-app/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires all handlers onto the gin engine.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	store service.ProfileStore,
	settingsService service.SettingsService,
) {
	authHandler := NewAuthHandler(store)
	settingsHandler := NewSettingsHandler(settingsService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, ok := currentUserID(c)
			if !ok {
				return
			}
			if profile, cached := store.CurrentProfile(userID); cached {
				c.JSON(http.StatusOK, mapProfileToResponse(profile))
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex()})
		})

		settingsGroup := protected.Group("/settings")
		{
			settingsGroup.GET("", settingsHandler.GetSettings)
			settingsGroup.PUT("", settingsHandler.UpdateSettings)
			settingsGroup.POST("/retry", settingsHandler.RetrySettings)

			settingsGroup.POST("/photo-url", settingsHandler.RequestPhotoUploadURL)
			settingsGroup.PUT("/photo", settingsHandler.ConfirmPhoto)
			settingsGroup.GET("/photo-url", settingsHandler.GetPhotoURL)
		}
	}
}
