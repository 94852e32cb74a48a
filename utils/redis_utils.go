package utils

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient wraps the shared redis connection used for per-viewer
// seen-status markers on feed posts.
type RedisClient struct {
	inner *redis.Client
}

const (
	// Redis only has string type, there is no boolean or int, so we use "1" to
	// represent true
	REDIS_TRUE = "1"

	// Seen markers expire after a month, a stale "NEW" badge on a very old
	// post is harmless.
	seenStatusTTL = 30 * 24 * time.Hour
)

var ctx = context.Background()

func GetRedisClient() *RedisClient {
	return &RedisClient{
		inner: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
			Password: os.Getenv("REDIS_PASSWD"),
			DB:       0, // use default DB
		})}
}

func PostSeenKey(userId string, postId string) string {
	return fmt.Sprintf("seen_%s_%s", userId, postId)
}

// GetPostsSeenStatus returns, for each post id in order, whether the user has
// already been shown the post.
func (r RedisClient) GetPostsSeenStatus(postIds []string, userId string) ([]bool, error) {
	postKeys := []string{}
	for _, pid := range postIds {
		postKeys = append(postKeys, PostSeenKey(userId, pid))
	}

	res, err := r.inner.MGet(ctx, postKeys...).Result()
	if err != nil {
		return nil, err
	}
	status := []bool{}
	for _, v := range res {
		status = append(status, v == REDIS_TRUE)
	}
	return status, nil
}

// MarkPostsAsSeen marks the given posts as seen by the user.
func (r RedisClient) MarkPostsAsSeen(postIds []string, userId string) error {
	pipe := r.inner.Pipeline()
	for _, pid := range postIds {
		pipe.Set(ctx, PostSeenKey(userId, pid), REDIS_TRUE, seenStatusTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}
