package bootstrap

import (
	"context"
	"time"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/controller"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/implementation"
	"ai-tutor-be/internal/repository/memory"
	redisrepo "ai-tutor-be/internal/repository/redis"
	"ai-tutor-be/internal/service"
	"ai-tutor-be/pkg/ai/mode"
	"ai-tutor-be/pkg/ai/router"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/llm/factory"
	pktNats "ai-tutor-be/pkg/nats"
	"ai-tutor-be/pkg/tutor/gap"
	"ai-tutor-be/pkg/tutor/session"
	"ai-tutor-be/pkg/tutor/window"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	TutorController    controller.ITutorController
	ProgressController controller.IProgressController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	ProgressService service.IProgressService
	NatsSubscriber  *pktNats.Subscriber // nil when NATS is unreachable

	Logger logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	progressLogger := logger.NewIsolatedLogger(cfg.App.ProgressLogPath)
	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Infrastructure
	// NATS (optional: progress events are best effort)
	var eventPublisher service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, progressLogger)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
	} else {
		eventPublisher = natsPub
		c.closers = append(c.closers, natsPub.Close)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, progressLogger)
	if err != nil {
		sysLogger.Warn("BOOTSTRAP", "Failed to connect to NATS Subscriber", map[string]interface{}{"error": err.Error()})
	} else {
		c.NatsSubscriber = natsSub
		c.closers = append(c.closers, natsSub.Close)
	}

	// Session Store
	sessionStore, err := newSessionStore(cfg, sysLogger, c)
	if err != nil {
		return nil, err
	}

	// 4. AI Service Layer
	ai, err := factory.NewAIService(cfg.Ai, sysLogger)
	if err != nil {
		return nil, err
	}
	sysLogger.Info("BOOTSTRAP", "Using LLM Provider", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	// 5. Orchestration Core
	progressRepo := implementation.NewProgressRepository(db)
	gapForwarder := service.NewGapForwarder(
		service.NewPublisherService(cfg.App.ProgressTopic, pubSub),
		progressLogger,
	)

	windowManager := window.NewManager(
		cfg.Window.Capacity,
		cfg.Window.TokenBudget,
		cfg.Window.KeepRecent,
		window.NewAISummarizer(ai),
		sysLogger,
	)
	gapPipeline := gap.NewPipeline(
		cfg.Gap.EscalationThreshold,
		cfg.Gap.CategorizeRetries,
		sysLogger,
		gap.WithCategorizer(gap.NewAICategorizer(ai)),
		gap.WithRecommender(gap.NewAIRecommender(ai)),
		gap.WithForwarder(gapForwarder),
	)
	modes := mode.NewMachine(sysLogger)
	adapter := mode.NewAdapter(ai, cfg.Mode.ExamWordLimit, cfg.Mode.ConceptWordTarget, sysLogger)

	registry := router.NewDefaultRegistry(ai, router.RemoteEndpoints{
		CodeAnalyzerURL:    cfg.Remote.CodeAnalyzerURL,
		VisualGeneratorURL: cfg.Remote.VisualGeneratorURL,
	})
	queryRouter := router.NewRouter(
		router.NewClassifier(cfg.Router.ConfidenceThreshold),
		registry,
		windowManager,
		gapPipeline,
		modes,
		adapter,
		router.Deadlines{Text: cfg.Router.TextDeadline, Visual: cfg.Router.VisualDeadline},
		router.NewMetrics(prometheus.DefaultRegisterer),
		sysLogger,
	)
	sessions := session.NewManager(sessionStore, cfg.Session.TTL, sysLogger)

	// 6. Services
	progressService := service.NewProgressService(progressRepo, eventPublisher, progressLogger)
	tutorService := service.NewTutorService(
		sessions,
		queryRouter,
		modes,
		windowManager,
		gapPipeline,
		progressService,
		sysLogger,
	)
	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.App.ProgressTopic,
		progressRepo,
		eventPublisher,
		cfg.Gap.ForwardMaxRetries,
		progressLogger,
	)
	c.ProgressService = progressService

	// 7. Controllers
	c.TutorController = controller.NewTutorController(tutorService)
	c.ProgressController = controller.NewProgressController(progressService)

	return c, nil
}

// StartBackground runs the progress consumer and the resolution subscriber
func (c *Container) StartBackground(ctx context.Context) error {
	if err := c.ConsumerService.Consume(ctx); err != nil {
		return err
	}
	if c.NatsSubscriber == nil {
		return nil
	}
	return c.NatsSubscriber.Subscribe(ctx, events.EventGapResolved, "tutor-gap-resolved", c.ProgressService.HandleGapResolved)
}

// Close releases connections in reverse order of creation
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func newSessionStore(cfg *config.Config, log logger.ILogger, c *Container) (contract.SessionStore, error) {
	if cfg.Session.Store != "redis" {
		log.Info("BOOTSTRAP", "Using in-memory session store", map[string]interface{}{"ttl": cfg.Session.TTL.String()})
		return memory.NewSessionRepository(cfg.Session.TTL), nil
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Warn("BOOTSTRAP", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	c.closers = append(c.closers, func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Sessions fall back to the manager's local copy while Redis is down
		log.Warn("BOOTSTRAP", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	log.Info("BOOTSTRAP", "Using Redis session store", map[string]interface{}{"ttl": cfg.Session.TTL.String()})
	return redisrepo.NewSessionRepository(rdb, cfg.Session.TTL), nil
}
