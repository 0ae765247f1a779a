package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"go.uber.org/zap"
)

// NewClient Redis 클라이언트 생성 및 연결 확인
func NewClient(cfg config.RedisConfig, logger *zap.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Redis 연결 실패", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil, fmt.Errorf("Redis 연결 실패: %w", err)
	}

	logger.Info("Redis 연결 성공", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return client, nil
}
