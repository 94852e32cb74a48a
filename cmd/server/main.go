package main

import (
	"context"
	"os"

	"github.com/AshBuk/pic-share/app_config"
	"github.com/AshBuk/pic-share/feed"
	"github.com/AshBuk/pic-share/server"
	"github.com/AshBuk/pic-share/server/middlewares"
	"github.com/AshBuk/pic-share/store"
	"github.com/AshBuk/pic-share/utils"
	"github.com/AshBuk/pic-share/utils/dotenv"
	. "github.com/AshBuk/pic-share/utils/flag"
	. "github.com/AshBuk/pic-share/utils/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	Parse()
	InitLogger()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	middlewares.Setup()

	cfg := app_config.ParseFeedAppConfig(*AppConfigPath)
	feedCfg := feed.Config{
		PageSize:          cfg.PAGE_SIZE,
		CacheDuration:     cfg.CacheDuration(),
		ReconcileDebounce: cfg.ReconcileDebounce(),
		ActionSyncDelay:   cfg.ActionSyncDelay(),
	}

	// The gateway serves exactly one signed-in viewer per process.
	viewerId := os.Getenv("VIEWER_ID")
	if viewerId == "" {
		Log.Fatal("VIEWER_ID is not set")
	}

	db, err := utils.GetDBConnection()
	if err != nil {
		Log.Fatal("fail to connect to DB: ", err)
	}
	utils.DatabaseSetupAndMigration(db)

	notifier := store.NewNotifier()
	defer notifier.Close()
	entityStore := store.NewGormStore(db, notifier)

	feedService := feed.NewService(entityStore, notifier, viewerId, feedCfg, feed.LogNoticeSink{})
	if err := feedService.Start(context.Background()); err != nil {
		Log.Fatal("fail to start feed service: ", err)
	}
	defer feedService.Close()

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(middlewares.JWT())

	feedServer := server.NewFeedServer(
		feedService, entityStore, notifier, utils.GetRedisClient(), viewerId, cfg.PAGE_SIZE)
	feedServer.RegisterRoutes(router.Group("/api"))

	Log.Info("feed gateway listening on ", cfg.LISTEN_ADDR)
	if err := router.Run(cfg.LISTEN_ADDR); err != nil {
		Log.Fatal("server terminated: ", err)
	}
}
