// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
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
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrCacheMiss = errors.New("key not found in cache")
)

var rdb *redis.Client
var cache *lru.Cache

// SetupCache initializes the in-process LRU and, when `cache.redis` is set, the
// shared redis client. Values are lz4 compressed in both tiers.
func SetupCache() error {
	var err error
	if viper.GetBool("cache.redis") {
		opt, err := redis.ParseURL(viper.GetString("cache.redis_url"))
		if err != nil {
			log.Error().Err(err).Msg("could not parse redis URL")
			return err
		}

		rdb = redis.NewClient(opt)
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = 128
	}

	cache, err = lru.New(size)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		return err
	}

	return nil
}

// cacheEntry is a compressed value held in the local tier
type cacheEntry struct {
	data    []byte
	expires time.Time
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

func ttl() time.Duration {
	return time.Duration(viper.GetInt("cache.ttl")) * time.Second
}

func newEntry(data []byte) cacheEntry {
	entry := cacheEntry{data: data}
	if d := ttl(); d > 0 {
		entry.expires = time.Now().Add(d)
	}
	return entry
}

// CacheSet compresses bytes and stores them in every configured tier. Entries
// expire after `cache.ttl` seconds; 0 keeps them until evicted.
func CacheSet(ctx context.Context, key string, bytes []byte) error {
	if cache == nil {
		return nil
	}

	b2, err := Compress(bytes)
	if err != nil {
		return err
	}
	cache.Add(key, newEntry(b2))

	if rdb != nil {
		return rdb.Set(ctx, key, b2, ttl()).Err()
	}
	return nil
}

// CacheGet looks up key in the local cache first and falls back to redis.
// ErrCacheMiss is returned when neither tier holds the key.
func CacheGet(ctx context.Context, key string) ([]byte, error) {
	if cache == nil {
		return nil, ErrCacheMiss
	}

	if v2, ok := cache.Get(key); ok {
		entry := v2.(cacheEntry)
		if !entry.expired(time.Now()) {
			return Decompress(entry.data)
		}
		cache.Remove(key)
	}

	if rdb != nil {
		val, err := rdb.GetEx(ctx, key, ttl()).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		if err != nil {
			return nil, err
		}
		cache.Add(key, newEntry(val))
		return Decompress(val)
	}

	return nil, ErrCacheMiss
}
