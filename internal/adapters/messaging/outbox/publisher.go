package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pgrepo "github.com/ogurasousui/gym-appointments/internal/adapters/repository/postgres"
	"github.com/ogurasousui/gym-appointments/internal/platform/logging"
	"github.com/ogurasousui/gym-appointments/internal/platform/telemetry"
	"github.com/segmentio/kafka-go"
)

// Store はアウトボックス行の取得と配信済み更新を行います。
type Store interface {
	FetchUnpublished(ctx context.Context, limit int) ([]pgrepo.OutboxRecord, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// TransactionManager は取得から配信済み更新までを 1 トランザクションで囲みます。
type TransactionManager interface {
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

// MessageWriter は Kafka へのメッセージ書き込みです。*kafka.Writer が実装します。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config はパブリッシャーの動作設定です。
type Config struct {
	TopicPrefix  string
	PollInterval time.Duration
	BatchSize    int
}

// Publisher はアウトボックスの未配信イベントを Kafka に送ります。
// 書き込みに失敗したバッチはロールバックされ、次回のポーリングで再送されます。
type Publisher struct {
	store  Store
	tx     TransactionManager
	writer MessageWriter
	logger *slog.Logger
	cfg    Config
	now    func() time.Time
}

// NewWriter はイベントのアグリゲート ID でパーティションを決める kafka.Writer を生成します。
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewPublisher は Publisher を生成します。
func NewPublisher(store Store, tx TransactionManager, writer MessageWriter, logger *slog.Logger, cfg Config) *Publisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:  store,
		tx:     tx,
		writer: writer,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run は ctx がキャンセルされるまで一定間隔でバッチ配信を繰り返します。
func (p *Publisher) Run(ctx context.Context) {
	const op = "outbox.Publisher.Run"
	log := p.logger.With(slog.String("op", op))

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	log.Info("outbox publisher started", slog.Duration("poll_interval", p.cfg.PollInterval))

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx)
			if err != nil {
				log.Error("outbox publish failed", logging.Err(err))
				continue
			}
			if n > 0 {
				log.Debug("outbox events published", slog.Int("count", n))
			}
		}
	}
}

// PublishBatch は未配信イベントを最大 BatchSize 件配信し、配信件数を返します。
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	const op = "outbox.Publisher.PublishBatch"

	published := 0
	err := p.tx.WithinReadWrite(ctx, func(ctx context.Context) error {
		records, err := p.store.FetchUnpublished(ctx, p.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		msgs := make([]kafka.Message, 0, len(records))
		ids := make([]string, 0, len(records))
		for _, r := range records {
			msgs = append(msgs, p.message(ctx, r))
			ids = append(ids, r.ID)
		}

		if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write messages: %w", err)
		}

		if err := p.store.MarkPublished(ctx, ids, p.now()); err != nil {
			return err
		}
		published = len(records)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return published, nil
}

func (p *Publisher) message(ctx context.Context, r pgrepo.OutboxRecord) kafka.Message {
	msgCtx := telemetry.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
	msg := kafka.Message{
		Topic: p.topic(r.EventType),
		Key:   []byte(r.AggregateID),
		Value: r.Payload,
		Time:  r.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(r.ID)},
			{Key: "event_type", Value: []byte(r.EventType)},
		},
	}
	msg.Headers = InjectTraceHeaders(msgCtx, msg.Headers)
	return msg
}

func (p *Publisher) topic(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}
	return p.cfg.TopicPrefix + "." + eventType
}
