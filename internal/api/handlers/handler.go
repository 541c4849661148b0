package handlers

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/ai"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/env"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/knowledge"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/logger"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/mongo"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/session"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/transcript"
)

type Handler struct {
	cfg         *env.Config
	redisClient *redis.Client
	mongoClient *mongo.Client
	logger      *zap.Logger
	engine      *ai.Engine
	aiManager   *ai.Manager
	sessions    *session.Store
	index       *knowledge.Index
	archiver    *transcript.Archiver
}

func NewHandler(
	cfg *env.Config,
	redisClient *redis.Client,
	mongoClient *mongo.Client,
	engine *ai.Engine,
	aiManager *ai.Manager,
	sessions *session.Store,
	index *knowledge.Index,
	archiver *transcript.Archiver,
) *Handler {
	return &Handler{
		cfg:         cfg,
		redisClient: redisClient,
		mongoClient: mongoClient,
		logger:      logger.Log,
		engine:      engine,
		aiManager:   aiManager,
		sessions:    sessions,
		index:       index,
		archiver:    archiver,
	}
}
