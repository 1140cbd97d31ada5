package main // Entry point for the email delivery worker

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/config"
	"github.com/iliyamo/account-authority/internal/logger"
	"github.com/iliyamo/account-authority/internal/queue"
)

func main() {
	cfg := config.LoadMailer()
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{
		URL:     cfg.AMQPURL,
		Queue:   cfg.EmailQueue,
		Deliver: queue.FileDeliverer{Path: cfg.OutboxPath},
		Log:     logger.Component(log, "email-consumer"),
	}
	log.Info("mailer started", zap.String("queue", cfg.EmailQueue), zap.String("outbox", cfg.OutboxPath))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("consumer stopped", zap.Error(err))
	}
	log.Info("mailer stopped")
}
