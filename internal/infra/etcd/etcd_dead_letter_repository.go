// internal/infra/etcd/etcd_dead_letter_repository.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	"validation-worker/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DeadLetterDir = "/validation/dead-letters/"
)

type etcdDeadLetterRepository struct {
	client clientv3.KV
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEtcdDeadLetterRepository creates a dead-letter repository backed by etcd.
// A *clientv3.Client satisfies clientv3.KV.
func NewEtcdDeadLetterRepository(client clientv3.KV, logger *slog.Logger) domain.DeadLetterRepository {
	return &etcdDeadLetterRepository{
		client: client,
		logger: logger.With("component", "etcd-dead-letters"),
		tracer: otel.Tracer("validation-worker-etcd-dead-letters"),
	}
}

// Save persists a dead letter.
// The key is structured as /validation/dead-letters/{aiService}/{letterID}.
func (r *etcdDeadLetterRepository) Save(ctx context.Context, letter *domain.DeadLetter) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveDeadLetter")
	defer span.End()

	if err := letter.Validate(); err != nil {
		span.RecordError(err)
		return err
	}

	letterJSON, err := json.Marshal(letter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal dead letter")
		return fmt.Errorf("failed to marshal dead letter %s to JSON: %w", letter.ID, err)
	}

	key := path.Join(DeadLetterDir, letter.AIService, letter.ID)
	span.SetAttributes(
		attribute.String("dead_letter.id", letter.ID),
		attribute.String("job.id", letter.JobID),
		attribute.String("etcd.key", key),
	)

	if _, err := r.client.Put(ctx, key, string(letterJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put dead letter to etcd")
		return fmt.Errorf("failed to save dead letter %s to etcd: %w", letter.ID, err)
	}
	return nil
}

// List returns up to limit dead letters of aiService, oldest first.
// A limit of zero or less returns all of them.
func (r *etcdDeadLetterRepository) List(ctx context.Context, aiService string, limit int) ([]*domain.DeadLetter, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListDeadLetters")
	defer span.End()
	span.SetAttributes(attribute.String("ai_service", aiService), attribute.Int("limit", limit))

	opts := []clientv3.OpOption{
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortAscend),
	}
	if limit > 0 {
		opts = append(opts, clientv3.WithLimit(int64(limit)))
	}

	prefix := path.Join(DeadLetterDir, aiService) + "/"
	resp, err := r.client.Get(ctx, prefix, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list dead letters from etcd")
		return nil, fmt.Errorf("failed to list dead letters for %s from etcd: %w", aiService, err)
	}

	letters := make([]*domain.DeadLetter, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var letter domain.DeadLetter
		if err := json.Unmarshal(kv.Value, &letter); err != nil {
			r.logger.Warn("failed to unmarshal dead letter from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		letters = append(letters, &letter)
	}
	span.SetAttributes(attribute.Int("records_returned", len(letters)))
	return letters, nil
}
