package main

import (
	"context"
	"fmt"
	"time"

	config "github.com/NordCoder/Aurum/internal/config/api-gateway"
	"github.com/NordCoder/Aurum/internal/domain/quote"
	"github.com/NordCoder/Aurum/internal/feed"
	"github.com/NordCoder/Aurum/internal/pricecache"
	kafkarepo "github.com/NordCoder/Aurum/internal/repository/kafka"
	pg "github.com/NordCoder/Aurum/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Aurum/internal/repository/redis"
	"github.com/NordCoder/Aurum/internal/session"
	"go.uber.org/zap"
)

type closer func()

func initSessions(ctx context.Context, cfg *config.Config, users *pg.UserRepo, logger *zap.Logger) (*session.Manager, closer, error) {
	priv, pub, err := session.LoadKeyFiles(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath)
	if err != nil {
		return nil, nil, err
	}
	opts := []session.Option{
		session.WithKeys(priv, pub),
		session.WithIssuer(cfg.Auth.Issuer),
		session.WithTTLs(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL),
		session.WithRoleStore(users),
		session.WithLogger(logger),
	}

	release := func() {}
	if cfg.Redis.Enable {
		rc, err := redisrepo.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, session.WithDenylist(redisrepo.NewDenylist(rc)))
		release = func() { _ = rc.Close() }
		logger.Info("refresh token denylist enabled", zap.String("addr", cfg.Redis.Addr))
	}

	m, err := session.NewManager(opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return m, release, nil
}

func initEvents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (quote.Events, closer, error) {
	if !cfg.Kafka.Enable {
		return nil, func() {}, nil
	}
	if err := kafkarepo.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkarepo.TopicSpec{
		Name:              cfg.Kafka.Topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
		MaxWait:           30 * time.Second,
	}, logger); err != nil {
		return nil, nil, fmt.Errorf("ensure topic %s: %w", cfg.Kafka.Topic, err)
	}
	p := kafkarepo.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(logger)
	return kafkarepo.NewPriceEvents(p), func() { _ = p.Close() }, nil
}

func initPriceCache(cfg *config.Config, repo quote.Repo, events quote.Events, logger *zap.Logger) *pricecache.Cache {
	upstream := feed.New(cfg.Feed, logger)
	fetchers := make(map[string]quote.Fetcher, len(cfg.Price.Instruments))
	for _, id := range cfg.Price.Instruments {
		fetchers[id] = upstream
	}
	opts := []pricecache.Option{
		pricecache.WithTTL(cfg.Price.TTL),
		pricecache.WithSingleFlight(cfg.Price.SingleFlight),
		pricecache.WithLogger(logger),
	}
	if events != nil {
		opts = append(opts, pricecache.WithEvents(events))
	}
	return pricecache.New(repo, fetchers, opts...)
}
