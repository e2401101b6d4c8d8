// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ErrCacheMiss is returned by CacheGet when a key is in neither the local
// LRU nor the redis backing store
var ErrCacheMiss = errors.New("key not found in cache")

var ctx = context.Background()
var rdb *redis.Client
var cache *lru.Cache

// SetupCache initializes the local LRU cache and, when configured, the redis
// backing store. Cached values are lz4 compressed.
func SetupCache() {
	var err error
	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			os.Exit(1)
		}

		rdb = redis.NewClient(opt)
	}

	cache, err = lru.New(viper.GetInt("cache.local_size"))
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		os.Exit(1)
	}
}

func cacheTTL() time.Duration {
	return time.Duration(viper.GetInt("cache.ttl")) * time.Second
}

func CacheSet(key string, bytes []byte) error {
	compressed, err := Compress(bytes)
	if err != nil {
		return err
	}
	cache.Add(key, compressed)

	if viper.GetBool("cache.redis") {
		return rdb.Set(ctx, key, compressed, cacheTTL()).Err()
	}
	return nil
}

// CacheGet fetches a key, trying the local LRU before redis. A redis read
// refreshes the key's TTL.
func CacheGet(key string) ([]byte, error) {
	if v, ok := cache.Get(key); ok {
		return Decompress(v.([]byte))
	}

	if viper.GetBool("cache.redis") {
		val, err := rdb.GetEx(ctx, key, cacheTTL()).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
		}
		if err != nil {
			return nil, err
		}
		return Decompress(val)
	}

	return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
}
