// Package postgres implements store.Store on top of pgx/v5 and pgxpool,
// following the column-const/scan-helper repository shape of the teacher's
// email repository, with the bulk-insert and atomic-claim operations this
// domain needs instead of the teacher's single-row CRUD.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bulksend/bulksend/internal/model"
	"github.com/bulksend/bulksend/internal/store"
)

// BatchInsertSize bounds the number of rows per multi-row INSERT statement,
// matching the teacher's preference for chunked bulk writes over one
// giant statement. Spec recommends 100-150.
const BatchInsertSize = 120

type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given pgxpool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const contentColumns = `id, subject, html_body, created_at`

func scanContent(row pgx.Row) (*model.EmailContent, error) {
	c := &model.EmailContent{}
	err := row.Scan(&c.ID, &c.Subject, &c.HTMLBody, &c.CreatedAt)
	return c, err
}

func (s *Store) GetContent(ctx context.Context, id uuid.UUID) (*model.EmailContent, error) {
	query := fmt.Sprintf(`SELECT %s FROM email_contents WHERE id = $1`, contentColumns)
	c, err := scanContent(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("content")
		}
		return nil, fmt.Errorf("get content: %w", err)
	}
	return c, nil
}

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx, so the insert helpers
// below can run standalone or inside InsertBatch's transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgx.CommandTag, error)
}

// InsertBatch runs the whole of one submit call in a single transaction.
// Items sharing an identical (subject, body) pair are deduplicated onto one
// EmailContent row, grounded on spec.md §4.1's "distinct (subject, body)
// pairs... invoked once per ingest as part of a single transaction together
// with the related request inserts." Request rows are then bulk-inserted
// per item, chunked at BatchInsertSize, using the same unnest-array shape
// FinalizeBatch uses for its bulk write.
func (s *Store) InsertBatch(ctx context.Context, fromAddress string, items []store.BatchItem) ([]uuid.UUID, [][]uuid.UUID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin insert batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	type contentKey struct{ subject, body string }
	assigned := make(map[contentKey]uuid.UUID, len(items))
	contentIDs := make([]uuid.UUID, len(items))

	var newIDs []uuid.UUID
	var newSubjects, newBodies []string
	for i, item := range items {
		key := contentKey{item.Subject, item.Body}
		if id, ok := assigned[key]; ok {
			contentIDs[i] = id
			continue
		}
		id := uuid.New()
		assigned[key] = id
		contentIDs[i] = id
		newIDs = append(newIDs, id)
		newSubjects = append(newSubjects, item.Subject)
		newBodies = append(newBodies, item.Body)
	}

	if len(newIDs) > 0 {
		const contentQuery = `
			INSERT INTO email_contents (id, subject, html_body, created_at)
			SELECT id, subject, html_body, now()
			FROM unnest($1::uuid[], $2::text[], $3::text[]) AS v(id, subject, html_body)`
		if _, err := tx.Exec(ctx, contentQuery, newIDs, newSubjects, newBodies); err != nil {
			return nil, nil, fmt.Errorf("insert contents: %w", err)
		}
	}

	requestIDs := make([][]uuid.UUID, len(items))
	for i, item := range items {
		ids, err := s.insertRequestRows(ctx, tx, contentIDs[i], fromAddress, item.Messages)
		if err != nil {
			return nil, nil, err
		}
		requestIDs[i] = ids
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit insert batch: %w", err)
	}
	return contentIDs, requestIDs, nil
}

// insertRequestRows inserts one EmailRequest row per message, all sharing
// contentID and fromAddress, chunked at BatchInsertSize.
func (s *Store) insertRequestRows(ctx context.Context, tx dbtx, contentID uuid.UUID, fromAddress string, messages []store.BatchMessage) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(messages))
	for i := range messages {
		ids[i] = uuid.New()
	}

	const query = `
		INSERT INTO email_requests (id, topic_id, content_id, from_address, to_address, send_at, status, created_at)
		SELECT id, topic_id, $1, $2, to_address, send_at, 'created', now()
		FROM unnest($3::uuid[], $4::uuid[], $5::text[], $6::timestamptz[]) AS v(id, topic_id, to_address, send_at)`

	for start := 0; start < len(messages); start += BatchInsertSize {
		end := start + BatchInsertSize
		if end > len(messages) {
			end = len(messages)
		}
		chunk := messages[start:end]
		chunkIDs := ids[start:end]

		topicIDs := make([]uuid.UUID, len(chunk))
		toAddresses := make([]string, len(chunk))
		sendAts := make([]time.Time, len(chunk))
		for i, msg := range chunk {
			topicIDs[i] = msg.TopicID
			toAddresses[i] = msg.ToAddress
			sendAts[i] = msg.SendAt
		}

		if _, err := tx.Exec(ctx, query, contentID, fromAddress, chunkIDs, topicIDs, toAddresses, sendAts); err != nil {
			return nil, fmt.Errorf("insert requests chunk %d-%d: %w", start, end, err)
		}
	}
	return ids, nil
}

const requestColumnsQualified = `r.id, r.topic_id, r.content_id, r.from_address, r.to_address, r.send_at, r.status, r.message_id, r.error, r.claimed_at, r.finalized_at, r.created_at`

func scanClaimedRequest(row pgx.CollectableRow) (model.ClaimedRequest, error) {
	var c model.ClaimedRequest
	err := row.Scan(
		&c.ID, &c.TopicID, &c.ContentID, &c.FromAddress, &c.ToAddress, &c.SendAt,
		&c.Status, &c.MessageID, &c.Error, &c.ClaimedAt, &c.FinalizedAt, &c.CreatedAt,
		&c.Subject, &c.Body,
	)
	return c, err
}

// ClaimDue grounds its locking on the same FOR UPDATE SKIP LOCKED +
// RETURNING shape used to claim unprocessed webhook events in the
// provider-webhook aggregator this pipeline's author studied: a single
// statement both picks and marks rows so two concurrent claimers can never
// observe the same row. It joins email_contents directly in the same
// statement so the subject/body travel back with the claimed rows —
// spec.md's claim_due contract returns "the updated rows joined with their
// content", not bare request rows a caller must re-fetch one at a time.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ClaimedRequest, error) {
	query := fmt.Sprintf(`
		WITH due AS (
			SELECT id, content_id FROM email_requests
			WHERE status = 'created' AND send_at <= $1
			ORDER BY send_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE email_requests AS r
		SET status = 'processed', claimed_at = $1
		FROM due
		JOIN email_contents AS c ON c.id = due.content_id
		WHERE r.id = due.id
		RETURNING %s, c.subject, c.html_body`, requestColumnsQualified)

	rows, err := s.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due: %w", err)
	}
	defer rows.Close()

	claimed, err := pgx.CollectRows(rows, scanClaimedRequest)
	if err != nil {
		return nil, fmt.Errorf("collect claimed requests: %w", err)
	}
	return claimed, nil
}

// FinalizeBatch applies the post-processor's buffered outcomes with one
// unnest-joined bulk UPDATE, the idiomatic Postgres alternative to either a
// giant CASE expression or one statement per row.
func (s *Store) FinalizeBatch(ctx context.Context, outcomes []store.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(outcomes))
	statuses := make([]string, len(outcomes))
	messageIDs := make([]*string, len(outcomes))
	errs := make([]*string, len(outcomes))

	for i, o := range outcomes {
		ids[i] = o.RequestID
		if o.Sent {
			statuses[i] = string(model.RequestStatusSent)
			mid := o.MessageID
			messageIDs[i] = &mid
		} else {
			statuses[i] = string(model.RequestStatusFailed)
			msg := ""
			if o.Err != nil {
				msg = o.Err.Error()
			}
			errs[i] = &msg
		}
	}

	query := `
		UPDATE email_requests AS r
		SET status = v.status, message_id = v.message_id, error = v.error, finalized_at = now()
		FROM (
			SELECT * FROM unnest($1::uuid[], $2::text[], $3::text[], $4::text[]) AS v(id, status, message_id, error)
		) AS v
		WHERE r.id = v.id`

	if _, err := s.pool.Exec(ctx, query, ids, statuses, messageIDs, errs); err != nil {
		return fmt.Errorf("finalize batch: %w", err)
	}
	return nil
}

func (s *Store) StopTopic(ctx context.Context, topicID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE email_requests SET status = 'stopped' WHERE topic_id = $1 AND status = 'created'`,
		topicID,
	)
	if err != nil {
		return 0, fmt.Errorf("stop topic: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountsByTopic(ctx context.Context, topicID uuid.UUID) (*model.TopicCounts, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, count(*) FROM email_requests WHERE topic_id = $1 GROUP BY status`,
		topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("counts by topic: %w", err)
	}

	counts := &model.TopicCounts{TopicID: topicID, ResultCounts: map[string]int64{}}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan topic counts: %w", err)
		}
		switch model.RequestStatus(status) {
		case model.RequestStatusCreated:
			counts.Created = n
		case model.RequestStatusProcessed:
			counts.Processed = n
		case model.RequestStatusSent:
			counts.Sent = n
		case model.RequestStatusFailed:
			counts.Failed = n
		case model.RequestStatusStopped:
			counts.Stopped = n
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("scan topic counts: %w", err)
	}
	rows.Close()

	resultRows, err := s.pool.Query(ctx,
		`SELECT res.event_type, count(*)
		 FROM email_results res
		 JOIN email_requests req ON req.id = res.request_id
		 WHERE req.topic_id = $1
		 GROUP BY res.event_type`,
		topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("counts by topic (results): %w", err)
	}
	defer resultRows.Close()

	for resultRows.Next() {
		var kind string
		var n int64
		if err := resultRows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan result counts: %w", err)
		}
		counts.ResultCounts[kind] = n
	}
	if err := resultRows.Err(); err != nil {
		return nil, fmt.Errorf("scan result counts: %w", err)
	}

	return counts, nil
}

func (s *Store) SentCount(ctx context.Context, window time.Duration) (int64, error) {
	var n int64
	cutoff := time.Now().UTC().Add(-window)
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM email_requests WHERE status = 'sent' AND created_at >= $1`,
		cutoff,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sent count: %w", err)
	}
	return n, nil
}

func (s *Store) RequestIDForMessageID(ctx context.Context, messageID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM email_requests WHERE message_id = $1`, messageID,
	).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return uuid.Nil, notFound("request")
		}
		return uuid.Nil, fmt.Errorf("request id for message id: %w", err)
	}
	return id, nil
}

// AppendResult inserts an EmailResult row for requestID. The row is only
// written if requestID currently exists; when it doesn't, RowsAffected is 0
// and the call reports ErrNotFound instead of silently no-opping.
func (s *Store) AppendResult(ctx context.Context, requestID uuid.UUID, eventType, payload string) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO email_results (id, request_id, event_type, payload, created_at)
		 SELECT $1, $2, $3, $4, now()
		 WHERE EXISTS (SELECT 1 FROM email_requests WHERE id = $2)`,
		uuid.New(), requestID, eventType, payload,
	)
	if err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("request")
	}
	return nil
}

// SweepStale implements the compensating mitigation the design notes
// describe: Processed rows whose claim predates olderThan never heard back
// from the post-processor (the process likely crashed mid-flight) and are
// demoted so they stop being silently stuck forever.
func (s *Store) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`UPDATE email_requests
		 SET status = 'failed', error = 'stale: processor did not finalize within threshold', finalized_at = now()
		 WHERE status = 'processed' AND claimed_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep stale: %w", err)
	}
	return tag.RowsAffected(), nil
}
