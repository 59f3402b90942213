// Command replay republishes archived notification payloads to the work queue.
//
//	replay -tags 12,13,40
//	replay -consumer 2 -tags 7
//
// It reads the same environment as the worker (AMQP_URL, REDIS_URL, QUEUE_NAME).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/notifyhub/notification-worker/internal/archive"
	"github.com/notifyhub/notification-worker/internal/broker"
	"github.com/notifyhub/notification-worker/internal/config"
	"github.com/notifyhub/notification-worker/internal/replay"
	"github.com/notifyhub/notification-worker/internal/store"
)

func main() {
	tagsFlag := flag.String("tags", "", "comma-separated delivery tags to replay")
	queue := flag.String("queue", "", "target queue (defaults to QUEUE_NAME)")
	consumer := flag.Int("consumer", 0, "id of the consumer that archived the tags")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	tags, err := parseTags(*tagsFlag)
	if err == nil && *consumer < 0 {
		err = fmt.Errorf("-consumer must not be negative")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if *queue == "" {
		*queue = cfg.QueueName
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, err := store.NewRedisStore(ctx, cfg.RedisURL, store.RedisOptions{
		DialTimeout: cfg.RedisDialTimeout,
		RWTimeout:   cfg.RedisRWTimeout,
		MaxRetries:  cfg.RedisMaxRetries,
	})
	if err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer kv.Close()

	b, err := broker.Dial(cfg.AMQPURL)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer b.Close()

	svc := replay.NewService(archive.New(kv), b, *queue, logger)
	res, err := svc.Replay(ctx, *consumer, tags)
	if err != nil {
		logger.Error("replay aborted", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)

	if err != nil || res.Republished != len(tags) {
		stop()
		_ = b.Close()
		_ = kv.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func parseTags(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("-tags is required")
	}
	parts := strings.Split(s, ",")
	tags := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tag, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid delivery tag %q: %w", p, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
