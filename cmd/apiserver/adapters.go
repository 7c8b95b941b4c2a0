package main

import (
	"context"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/database/redis"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// Adapters for HealthHandler
type kbHealthAdapter struct {
	kb *lab_kb.KnowledgeBase
}

func (a *kbHealthAdapter) Name() string {
	return "knowledge_base"
}

func (a *kbHealthAdapter) Check(context.Context) error {
	if a.kb == nil || a.kb.Len() == 0 {
		return errors.New(errors.ErrCodeServiceUnavailable, "knowledge base is empty")
	}
	return nil
}

type redisHealthAdapter struct {
	client *redis.Client
}

func (a *redisHealthAdapter) Name() string {
	return "redis"
}

func (a *redisHealthAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}
