package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yourusername/images-extractor/internal/config"
	"github.com/yourusername/images-extractor/internal/history"
)

const historyConnectTimeout = 5 * time.Second

type historyBinding struct {
	store  *history.Store
	client *redis.Client
}

// setupHistory は REDIS_URL が設定されている場合に抽出履歴を有効化します。
// 無効時は nil と何もしない close 関数を返します。
func setupHistory(cfg *config.Config, logger *zerolog.Logger) (*historyBinding, func(), error) {
	if !cfg.HistoryEnabled() {
		logger.Info().Msg("extraction history disabled (REDIS_URL is empty)")
		return nil, func() {}, nil
	}

	ttlMinutes := cfg.HistoryTTLMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyConnectTimeout)
	defer cancel()

	store, client, err := history.Open(ctx, cfg.RedisURL, time.Duration(ttlMinutes)*time.Minute)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Int("ttl_minutes", ttlMinutes).Msg("extraction history enabled")

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close redis client")
		}
	}
	return &historyBinding{store: store, client: client}, closeFn, nil
}
