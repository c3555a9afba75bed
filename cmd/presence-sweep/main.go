// Command presence-sweep removes stale presence entries from Redis. Regions
// that are never read again keep their entries until the key TTL runs out;
// this tool clears them early, for example after lowering the TTL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pscheid92/gridlayout/internal/adapter/redis"
	"github.com/pscheid92/gridlayout/internal/collab"
	"github.com/pscheid92/gridlayout/internal/platform/logging"
	"github.com/pscheid92/gridlayout/internal/platform/version"
)

func main() {
	var (
		redisURL   = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		staleAfter = flag.Duration("stale-after", collab.DefaultStaleAfter, "Remove entries last seen longer ago than this")
		dryRun     = flag.Bool("dry-run", false, "Dry run mode (count only, don't delete)")
		verbose    = flag.Bool("verbose", false, "Verbose logging")
		showVer    = flag.Bool("version", false, "Print build information and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println(version.Get())
		return
	}

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rdb, err := redis.NewClient(ctx, *redisURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	// The TTL only matters for writes, which a sweep never makes.
	store := redis.NewPresenceStore(rdb, 2 * *staleAfter)
	cutoff := time.Now().Add(-*staleAfter)

	start := time.Now()
	slog.Info("Starting sweep", "cutoff", cutoff.Format(time.RFC3339), "dry_run", *dryRun)

	stats, err := store.Sweep(ctx, cutoff, *dryRun)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	slog.Info("Sweep summary",
		"keys", stats.Keys,
		"stale", stats.Stale,
		"skipped", stats.Skipped,
		"dry_run", *dryRun,
		"duration_ms", time.Since(start).Milliseconds())
}

// sanitizeURL hides the password of a Redis URL for logging.
func sanitizeURL(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return url
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return url
	}
	return scheme + "://" + user + ":***@" + host
}
