package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries the settings the router needs besides its handlers.
type RouterConfig struct {
	AllowedOrigins      []string
	Version             string
	OCREngine           string
	SecondaryConfigured bool
	MaxFileSize         int64
}

// NewRouter wires every route of the service.
func NewRouter(receipts *ReceiptHandler, lobbies *LobbyHandler, cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.MaxMultipartMemory = max(cfg.MaxFileSize, 8<<20)
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":               "healthy",
			"service":              "slice-receipts",
			"ocr_engine":           cfg.OCREngine,
			"secondary_configured": cfg.SecondaryConfigured,
		})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.Version})
	})

	router.POST("/scan-bill", receipts.ScanBill)

	router.POST("/claim-item", lobbies.Claim)
	lobby := router.Group("/lobby")
	{
		lobby.POST("/create", lobbies.Create)
		lobby.GET("/:id", lobbies.State)
		lobby.GET("/:id/items", lobbies.Items)
		lobby.GET("/:id/summary", lobbies.Summary)
		lobby.POST("/:id/join", lobbies.Join)
		lobby.POST("/:id/claim", lobbies.Claim)
		lobby.POST("/:id/item-category", lobbies.UpdateItemCategory)
		lobby.POST("/:id/item-update", lobbies.UpdateItem)
		lobby.POST("/:id/claim-reset", lobbies.ResetClaims)
		lobby.POST("/:id/item-add", lobbies.AddItem)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}
