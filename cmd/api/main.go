// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yourusername/images-extractor/internal/config"
	"github.com/yourusername/images-extractor/internal/logging"
	"github.com/yourusername/images-extractor/internal/pdf"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logging.New(logging.Options{})
		bootstrap.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
	})

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// gin.Default() の Logger は使わず、zerolog のアクセスログに置き換える
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestID(), logging.AccessLog(logger))

	// CORSミドルウェアの設定
	router.Use(cors.New(corsConfig(cfg)))

	hist, closeHistory, err := setupHistory(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up extraction history")
	}
	defer closeHistory()

	// ルーティングの設定
	if err := setupRoutes(router, cfg, &logger, hist); err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up routes")
	}

	// サーバーの起動（全インターフェースで待ち受け）
	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Str("mode", cfg.GinMode).Msg("Starting API server")
	if err := router.Run(addr); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	origins := make([]string, 0)
	for _, o := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader}
	c.ExposeHeaders = []string{logging.RequestIDHeader, "Content-Disposition"}
	return c
}

// setupRoutes はサービスを組み立ててエンドポイントを登録します。
func setupRoutes(router *gin.Engine, cfg *config.Config, logger *zerolog.Logger, hist *historyBinding) error {
	extractor := pdf.NewExtractor(
		pdf.WithLogger(logger),
		pdf.WithJPXDecoder(pdf.FitzDecoder{TempDir: cfg.UploadDir}),
	)

	opts := pdf.ServiceOptions{
		UploadDir:   cfg.UploadDir,
		ImagesDir:   cfg.ImagesDir,
		MaxFileSize: cfg.MaxFileSize,
		Extractor:   extractor,
		Logger:      logger,
	}
	handlerOpts := pdf.HandlerOptions{
		ChannelTag:    cfg.ChannelTag,
		PublicBaseURL: cfg.PublicBaseURL,
	}
	// nil の *history.Store をインターフェースに入れないよう、有効時のみ設定する
	if hist != nil {
		opts.Recorder = hist.store
		handlerOpts.History = hist.store
	}

	svc, err := pdf.NewService(opts)
	if err != nil {
		return err
	}

	pdf.RegisterRoutes(router, svc, handlerOpts)
	return nil
}
