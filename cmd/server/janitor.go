package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

// expirer is a key-value backend that has to drop expired entries itself.
type expirer interface {
	PurgeExpired() int
}

// janitor periodically forgets per-session state nobody has touched for idle.
type janitor struct {
	carts    *service.Carts
	catalog  *service.CatalogService
	http     *handler.HTTPHandler
	kv       port.KeyValueStore
	idle     time.Duration
	interval time.Duration
	logger   logrus.FieldLogger
}

func (j janitor) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.sweep(ctx, now)
		}
	}
}

func (j janitor) sweep(ctx context.Context, now time.Time) {
	cutoff := now.Add(-j.idle)
	fields := logrus.Fields{
		"carts":     j.carts.Sweep(ctx, cutoff),
		"browsers":  j.catalog.SweepBrowsers(cutoff),
		"limiters":  j.http.SweepLimiters(cutoff),
		"kv_purged": 0,
	}
	if e, ok := j.kv.(expirer); ok {
		fields["kv_purged"] = e.PurgeExpired()
	}
	j.logger.WithFields(fields).Debug("idle sessions swept")
}
