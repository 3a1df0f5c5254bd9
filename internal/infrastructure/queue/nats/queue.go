package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/infrastructure/resilience"
)

const workerQueueGroup = "edc-ingest-workers"

// Queue moves import jobs between the API process and the import workers
// over NATS. Jobs are plain JSON; the queue group spreads them across worker
// replicas.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	log      *slog.Logger
}

func Connect(url, subject string, executor *resilience.Executor, log *slog.Logger) (*Queue, error) {
	conn, err := nats.Connect(url,
		nats.Name("edc-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats at %s: %w", url, err)
	}
	return &Queue{conn: conn, subject: subject, executor: executor, log: log}, nil
}

func (q *Queue) PublishImportJob(ctx context.Context, job domain.ImportJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal import job: %w", err)
	}

	err = q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		return q.conn.Publish(q.subject, payload)
	}, classifyPublishError)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "publish import job", err)
	}

	q.log.Info("import job published",
		slog.String("batch_id", job.BatchID),
		slog.String("folder", job.Folder),
		slog.String("subject", q.subject),
	)
	return nil
}

// SubscribeImportJobs consumes jobs until the context ends. Handler failures
// are logged and the message is dropped; the job state lives in the batch
// store, so operators re-trigger failed imports from there.
func (q *Queue) SubscribeImportJobs(ctx context.Context, handler func(context.Context, domain.ImportJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		var job domain.ImportJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			q.log.Error("malformed import job payload", slog.Any("error", err))
			return
		}
		if err := handler(ctx, job); err != nil {
			q.log.Error("import job failed",
				slog.String("batch_id", job.BatchID),
				slog.String("folder", job.Folder),
				slog.Any("error", err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", q.subject, err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		q.log.Warn("drain subscription", slog.Any("error", err))
	}
	return ctx.Err()
}

func (q *Queue) Close() {
	if err := q.conn.Drain(); err != nil {
		q.log.Warn("drain nats connection", slog.Any("error", err))
	}
}

// Publish failures are connectivity problems until proven otherwise.
func classifyPublishError(err error) resilience.Classification {
	switch {
	case err == nil:
		return resilience.Classification{}
	case err == nats.ErrInvalidMsg, err == nats.ErrBadSubject:
		return resilience.Classification{Retryable: false, RecordFailure: false}
	default:
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}
}
