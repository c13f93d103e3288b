package conn

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
)

const (
	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
)

// RedisOption defines connection options for Redis.
type RedisOption struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port with defaults applied.
func (opt RedisOption) Addr() string {
	host := opt.Host
	if host == "" {
		host = defaultRedisHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultRedisPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, opt RedisOption) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opt.Addr(),
		Password: opt.Password,
		DB:       opt.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", opt.Addr())
	}

	return client, nil
}
