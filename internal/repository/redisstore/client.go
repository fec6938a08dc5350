// Package redisstore keeps the masjid directory and the lock manager in
// redis, so several API replicas share one directory and one lock space.
//
// Key layout:
//
//	masjid:<id>             JSON record
//	masjid:cell:<geohash>   set of ids in a coarse cell
//	masjid:state:<state>    set of ids in a state
//	masjid:names            sorted set of "<lower name>\x00<id>", all score 0
//	lock:<key>              lock holder, SET NX PX
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"masjidgo/internal/config"
)

// NewClient dials redis and pings it once. A failed ping is returned so the
// caller can fall back to the in-memory stores.
func NewClient(ctx context.Context, cfg config.StorageConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}
