package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/adapter/catalog"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/persist"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

const (
	redisAddr     = "localhost:6379"
	scope         = "stress-test"
	totalRequests = 500
	cartTTL       = time.Hour
)

func main() {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var kv port.KeyValueStore
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable, using in-memory store")
		rdb.Close()
		kv = storage.NewMemoryAdapter(cartTTL)
	} else {
		defer rdb.Close()
		rdb.Del(ctx, "storefront:"+service.CartKey(scope))
		kv = storage.NewRedisAdapter(rdb, cartTTL)
	}

	store := persist.New[[]domain.CartItem](kv, logger)
	cart := service.NewCarts(store).Get(ctx, scope)
	products := catalog.SeedProducts()

	var adds, updates, removes atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	// Every worker adds one product; every third also bumps a quantity and
	// every fifth removes something that was never added.
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			p := products[n%len(products)]
			cart.AddToCart(ctx, p)
			adds.Add(1)

			if n%3 == 0 {
				cart.UpdateQuantity(ctx, "does-not-exist", 7)
				updates.Add(1)
			}
			if n%5 == 0 {
				cart.RemoveFromCart(ctx, "does-not-exist")
				removes.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	snapshot := cart.Snapshot()
	reloaded := service.NewCartService(ctx, store, service.CartKey(scope)).Snapshot()

	fmt.Println("=== Cart Stress Test Results ===")
	fmt.Printf("Total requests:  %d\n", totalRequests)
	fmt.Printf("Adds:            %d\n", adds.Load())
	fmt.Printf("Updates:         %d\n", updates.Load())
	fmt.Printf("Removes:         %d\n", removes.Load())
	fmt.Printf("Distinct items:  %d (expected %d)\n", len(snapshot.Items), len(products))
	fmt.Printf("Item count:      %d (expected %d)\n", snapshot.ItemCount, totalRequests)
	fmt.Printf("Total:           %s\n", snapshot.Total.StringFixed(2))
	fmt.Printf("Elapsed:         %v\n", elapsed)
	fmt.Printf("Throughput:      %.0f ops/s\n", float64(adds.Load()+updates.Load()+removes.Load())/elapsed.Seconds())

	ok := snapshot.ItemCount == totalRequests &&
		len(snapshot.Items) == len(products) &&
		reloaded.ItemCount == snapshot.ItemCount &&
		reloaded.Total.Equal(snapshot.Total)
	if !ok {
		fmt.Printf("FAIL: expected %d items across %d products, got %d across %d (reloaded %d)\n",
			totalRequests, len(products), snapshot.ItemCount, len(snapshot.Items), reloaded.ItemCount)
		os.Exit(1)
	}
	fmt.Println("PASS: no lost updates, persisted cart matches memory")
}
