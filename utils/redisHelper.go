package utils

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
)

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	if typeOfT == nil {
		return ""
	}
	return typeOfT.Name()
}

/* Redis */

// StoreRedis stores obj as JSON under TypeName:key. ttl 0 keeps it forever.
func StoreRedis[T any](ctx context.Context, client redis.UniversalClient, key string, obj *T, ttl time.Duration) error {
	data, err := MarshalToJSON(obj)
	if err != nil {
		return err
	}
	return client.Set(ctx, GetTypeName[T]()+":"+key, data, ttl).Err()
}

// RetrieveRedis returns nil, nil when the key does not exist.
func RetrieveRedis[T any](ctx context.Context, client redis.UniversalClient, key string) (*T, error) {
	data, err := client.Get(ctx, GetTypeName[T]()+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result T
	if err := UnmarshalFromJSON(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveRedisPrefix deletes every TypeName:prefix* key.
func RemoveRedisPrefix[T any](ctx context.Context, client redis.UniversalClient, prefix string) error {
	iter := client.Scan(ctx, 0, GetTypeName[T]()+":"+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return client.Del(ctx, keys...).Err()
}
