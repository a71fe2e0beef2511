package server

import (
	"fmt"
	"net/http"
	"time"

	app "albumserv/src/app"
	cfg "albumserv/src/configuration"
	"albumserv/src/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter registers the album routes on a new gin engine.
func NewRouter(config *cfg.Properties, photos *PhotoHandler) *gin.Engine {
	if !config.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = config.Server.MaxUploadBytes

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "HEAD", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Cache-Control", "User-Agent"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(config.Server.AllowOrigins) == 0 || config.Server.AllowOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.Server.AllowOrigins
	}
	router.Use(cors.New(corsConfig))

	if config.Server.Debug {
		pprof.Register(router)
	}

	router.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "APP API Working"}) })
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	api.GET("/photos", photos.GetPhotos)
	api.POST("/photos/upload", photos.UploadPhoto)

	router.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{}) })
	return router
}

func RunServer(config *cfg.Properties, logger *zap.SugaredLogger) error {
	clientS3, err := app.NewMinioS3Client(
		config.S3.Endpoint,
		config.S3.Region,
		config.S3.AccessKey,
		config.S3.SecretKey,
		config.S3.Bucket,
		config.S3.BasePrefix,
		config.S3.UseSSL)
	if err != nil {
		return fmt.Errorf("could not connect to s3: %w", err)
	}
	index := repository.NewFilePhotoStore(config.Store.PhotosPath)
	photos := NewPhotoHandler(clientS3, index, config.Server.MaxUploadBytes, logger)

	router := NewRouter(config, photos)
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", config.Server.Port),
		Handler:     router,
		ReadTimeout: config.Server.ReadTimeout,
	}
	logger.Infof("server running on port %s", config.Server.Port)
	return srv.ListenAndServe()
}
