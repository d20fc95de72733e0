package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/voice-intake/internal/config"
	"github.com/wolfman30/voice-intake/internal/handoff"
	"github.com/wolfman30/voice-intake/internal/llm"
	"github.com/wolfman30/voice-intake/internal/notify"
	"github.com/wolfman30/voice-intake/internal/refine"
	"github.com/wolfman30/voice-intake/internal/voice"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

// BuildRefiner picks the transcript extractor named by REFINE_PROVIDER.
// LLM providers fall back to the rule extractor when the model call fails,
// and to rules alone when they are not fully configured.
func BuildRefiner(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (refine.Extractor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	rules := refine.NewRuleExtractor(time.Now)

	switch cfg.RefineProvider {
	case "", "rules":
		logger.Info("using rule-based transcript refinement")
		return rules, nil

	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" || awsCfg == nil {
			logger.Warn("bedrock refinement requested without a model or AWS config; using rules")
			return rules, nil
		}
		client := llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID)
		logger.Info("using bedrock transcript refinement", "model", cfg.BedrockModelID)
		return refine.NewFallback(refine.NewLLMExtractor(refine.LLMExtractorConfig{
			Client:   client,
			Model:    cfg.BedrockModelID,
			Provider: "bedrock",
			Logger:   logger,
		}), rules, logger), nil

	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("gemini refinement requested without an API key; using rules")
			return rules, nil
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		logger.Info("using gemini transcript refinement", "model", cfg.GeminiModelID)
		return refine.NewFallback(refine.NewLLMExtractor(refine.LLMExtractorConfig{
			Client:   client,
			Provider: "gemini",
			Logger:   logger,
		}), rules, logger), nil

	default:
		return nil, fmt.Errorf("bootstrap: unknown refine provider %q", cfg.RefineProvider)
	}
}

// HandoffDeps are the optional clients a finalized record can be delivered
// through. Nil clients are skipped.
type HandoffDeps struct {
	Redis    *redis.Client
	Postgres *pgxpool.Pool
	SQS      *sqs.Client
	S3       *s3.Client
	Email    notify.EmailSender
}

// BuildHandoff wires the sinks that receive finalized snapshots and picks
// the store evicted sessions are read back from: Redis when available,
// otherwise Postgres.
func BuildHandoff(cfg *appconfig.Config, deps HandoffDeps, logger *logging.Logger) (handoff.Sink, voice.SnapshotStore) {
	if logger == nil {
		logger = logging.Default()
	}
	var (
		sinks handoff.MultiSink
		store voice.SnapshotStore
	)
	if deps.Redis != nil {
		redisStore := handoff.NewRedisSnapshotStore(deps.Redis, cfg.SnapshotTTL)
		sinks = append(sinks, redisStore)
		store = redisStore
	}
	if deps.Postgres != nil {
		pgStore := handoff.NewPostgresRecordStore(deps.Postgres)
		sinks = append(sinks, pgStore)
		if store == nil {
			store = pgStore
		}
	}
	if cfg.HandoffQueueURL != "" {
		if deps.SQS == nil {
			logger.Warn("handoff queue configured without an SQS client; skipping", "queue_url", cfg.HandoffQueueURL)
		} else {
			sinks = append(sinks, handoff.NewSQSPublisher(deps.SQS, cfg.HandoffQueueURL))
		}
	}
	if cfg.ArchiveBucket != "" {
		if deps.S3 == nil {
			logger.Warn("archive bucket configured without an S3 client; skipping", "bucket", cfg.ArchiveBucket)
		} else {
			sinks = append(sinks, handoff.NewS3Archive(deps.S3, cfg.ArchiveBucket, cfg.ArchivePrefix))
		}
	}
	if cfg.ReviewNotifyEmail != "" && deps.Email != nil {
		sinks = append(sinks, notify.NewReviewNotifier(deps.Email, notify.ReviewNotifierConfig{
			To:      cfg.ReviewNotifyEmail,
			BaseURL: cfg.ReviewUIBaseURL,
		}, logger))
	}
	if len(sinks) == 0 {
		logger.Warn("no handoff sinks configured; finalized snapshots are only served from memory")
		return nil, nil
	}
	logger.Info("handoff sinks configured", "count", len(sinks))
	return sinks, store
}

// BuildEmailSender picks the review email provider. SES needs a client;
// an unconfigured provider logs instead of sending.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) (notify.EmailSender, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender, nil
		}
		logger.Warn("sendgrid selected without SENDGRID_API_KEY; review emails will only be logged")
	case "ses":
		if sesClient != nil {
			return notify.NewSESSender(sesClient, notify.SESConfig{
				FromEmail: cfg.EmailFrom,
				FromName:  cfg.EmailFromName,
			}, logger), nil
		}
		logger.Warn("ses selected without an SES client; review emails will only be logged")
	case "":
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
	return notify.NewLogSender(logger), nil
}

// BuildPostgresPool connects to DATABASE_URL, or returns nil when unset.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}
