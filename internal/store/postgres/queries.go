package postgres

// --- products ---

// queryUpsertProduct resolves one validated row against the catalog. The
// DO UPDATE branch only fires when a mutable field differs, so an identical
// row matches zero rows (no_op). xmax = 0 distinguishes insert from update.
// updated_at is forced strictly forward even within one clock tick.
const queryUpsertProduct = `
INSERT INTO products (sku, normalized_sku, name, description, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (normalized_sku) DO UPDATE
SET name = EXCLUDED.name,
    description = EXCLUDED.description,
    active = EXCLUDED.active,
    updated_at = GREATEST(NOW(), products.updated_at + interval '1 microsecond')
WHERE (products.name, products.description, products.active)
    IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.description, EXCLUDED.active)
RETURNING id, sku, normalized_sku, name, description, active, created_at, updated_at, (xmax = 0) AS inserted
`

const queryGetProductByKey = `
SELECT id, sku, normalized_sku, name, description, active, created_at, updated_at
FROM products
WHERE normalized_sku = $1
`

const queryInsertProduct = `
INSERT INTO products (sku, normalized_sku, name, description, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING id, created_at, updated_at
`

const queryGetProduct = `
SELECT id, sku, normalized_sku, name, description, active, created_at, updated_at
FROM products
WHERE id = $1
`

const queryListProducts = `
SELECT id, sku, normalized_sku, name, description, active, created_at, updated_at
FROM products
WHERE ($1 = '' OR sku ILIKE '%' || $1 || '%')
  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
  AND ($3 = '' OR description ILIKE '%' || $3 || '%')
  AND ($4::BOOLEAN IS NULL OR active = $4)
ORDER BY id DESC
LIMIT $5 OFFSET $6
`

const queryCountProducts = `
SELECT COUNT(*)
FROM products
WHERE ($1 = '' OR sku ILIKE '%' || $1 || '%')
  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
  AND ($3 = '' OR description ILIKE '%' || $3 || '%')
  AND ($4::BOOLEAN IS NULL OR active = $4)
`

const queryUpdateProduct = `
UPDATE products
SET name = $2,
    description = $3,
    active = $4,
    updated_at = GREATEST(NOW(), updated_at + interval '1 microsecond')
WHERE id = $1
  AND (name, description, active) IS DISTINCT FROM ($2, $3, $4)
RETURNING id, sku, normalized_sku, name, description, active, created_at, updated_at
`

const queryDeleteProduct = `
DELETE FROM products
WHERE id = $1
RETURNING id, sku, normalized_sku, name, description, active, created_at, updated_at
`

const queryDeleteAllProducts = `
WITH removed AS (
    DELETE FROM products
    RETURNING id, sku, normalized_sku, name, description, active, created_at, updated_at
)
SELECT id, sku, normalized_sku, name, description, active, created_at, updated_at
FROM removed
ORDER BY id ASC
`

// --- import jobs ---

const queryInsertJob = `
INSERT INTO import_jobs (id, status, spool_path, created_at)
VALUES ($1, 'queued', $2, NOW())
RETURNING created_at
`

const queryGetJob = `
SELECT id, status, spool_path, reason, total_rows,
    processed_rows, created_count, updated_count, rejected_count,
    rejected_samples, cancel_requested,
    claimed_at, started_at, finished_at, created_at
FROM import_jobs
WHERE id = $1
`

// queryClaimJob hands the oldest unclaimed queued job to exactly one worker.
// SKIP LOCKED keeps concurrent pools from blocking on the same row.
const queryClaimJob = `
WITH next AS (
    SELECT id FROM import_jobs
    WHERE status = 'queued'
      AND claimed_at IS NULL
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE import_jobs
SET claimed_at = NOW()
FROM next
WHERE import_jobs.id = next.id
RETURNING import_jobs.id, import_jobs.status, import_jobs.spool_path, import_jobs.reason,
    import_jobs.total_rows, import_jobs.processed_rows, import_jobs.created_count,
    import_jobs.updated_count, import_jobs.rejected_count, import_jobs.rejected_samples,
    import_jobs.cancel_requested, import_jobs.claimed_at, import_jobs.started_at,
    import_jobs.finished_at, import_jobs.created_at
`

const queryMarkJobRunning = `
UPDATE import_jobs
SET status = 'running', started_at = NOW()
WHERE id = $1
  AND status = 'queued'
`

const queryGetJobStatus = `
SELECT status FROM import_jobs WHERE id = $1
`

const querySetJobTotalRows = `
UPDATE import_jobs
SET total_rows = $2
WHERE id = $1
`

// queryRecordJobBatch adds one batch's deltas server-side and appends the new
// samples, keeping only the first $7 overall.
const queryRecordJobBatch = `
UPDATE import_jobs
SET processed_rows = processed_rows + $2,
    created_count = created_count + $3,
    updated_count = updated_count + $4,
    rejected_count = rejected_count + $5,
    rejected_samples = COALESCE((
        SELECT jsonb_agg(value)
        FROM (
            SELECT value
            FROM jsonb_array_elements(rejected_samples || $6::jsonb) WITH ORDINALITY AS t(value, ord)
            ORDER BY ord
            LIMIT $7
        ) trimmed
    ), '[]'::jsonb)
WHERE id = $1
`

const queryMarkJobTerminal = `
UPDATE import_jobs
SET status = $2, reason = $3, finished_at = NOW()
WHERE id = $1
  AND status NOT IN ('completed', 'failed')
`

const queryJobCancelRequested = `
SELECT cancel_requested FROM import_jobs WHERE id = $1
`

const queryRequestJobCancel = `
UPDATE import_jobs
SET cancel_requested = TRUE
WHERE id = $1
  AND status NOT IN ('completed', 'failed')
`

const queryRequeueStaleJobs = `
WITH stale AS (
    SELECT id FROM import_jobs
    WHERE status = 'queued'
      AND claimed_at IS NOT NULL
      AND claimed_at < $1
    FOR UPDATE SKIP LOCKED
)
UPDATE import_jobs
SET claimed_at = NULL
FROM stale
WHERE import_jobs.id = stale.id
`

const queryPurgeTerminalJobs = `
DELETE FROM import_jobs
WHERE status IN ('completed', 'failed')
  AND finished_at < $1
`

// --- event queue ---

const queryEnqueueEvent = `
INSERT INTO product_events (kind, payload, occurred_at, status, next_attempt_at, created_at)
VALUES ($1, $2, $3, 'pending', NOW(), NOW())
RETURNING seq
`

// queryLeaseNextEvent claims the oldest due pending event. attempts counts
// dispatch cycles and is bumped on each lease.
const queryLeaseNextEvent = `
WITH next AS (
    SELECT seq FROM product_events
    WHERE status = 'pending'
      AND next_attempt_at <= NOW()
    ORDER BY seq ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE product_events
SET status = 'leased', leased_at = NOW(), attempts = attempts + 1
FROM next
WHERE product_events.seq = next.seq
RETURNING product_events.seq, product_events.kind, product_events.payload,
    product_events.occurred_at, product_events.status, product_events.attempts,
    product_events.next_attempt_at, product_events.leased_at,
    product_events.last_error, product_events.created_at
`

const queryReleaseEvent = `
UPDATE product_events
SET status = 'pending', leased_at = NULL, next_attempt_at = $2, last_error = $3
WHERE seq = $1
  AND status NOT IN ('delivered', 'failed')
`

const querySettleEvent = `
UPDATE product_events
SET status = $2, leased_at = NULL, last_error = $3
WHERE seq = $1
  AND status NOT IN ('delivered', 'failed')
`

const queryGetEventStatus = `
SELECT status FROM product_events WHERE seq = $1
`

const queryGetEvent = `
SELECT seq, kind, payload, occurred_at, status, attempts,
    next_attempt_at, leased_at, last_error, created_at
FROM product_events
WHERE seq = $1
`

const queryRequeueStaleEvents = `
WITH stale AS (
    SELECT seq FROM product_events
    WHERE status = 'leased'
      AND leased_at < $1
    FOR UPDATE SKIP LOCKED
)
UPDATE product_events
SET status = 'pending', leased_at = NULL, next_attempt_at = NOW()
FROM stale
WHERE product_events.seq = stale.seq
`

const queryExpireOverdueEvents = `
UPDATE product_events
SET status = 'failed', last_error = 'expired'
WHERE status = 'pending'
  AND created_at < $1
`

const queryPurgeTerminalEvents = `
WITH purged AS (
    DELETE FROM product_events
    WHERE status IN ('delivered', 'failed')
      AND created_at < $1
    RETURNING seq
),
pruned AS (
    DELETE FROM delivery_attempts
    WHERE event_seq IN (SELECT seq FROM purged)
)
SELECT COUNT(*) FROM purged
`

const queryPendingEventCount = `
SELECT COUNT(*) FROM product_events WHERE status = 'pending'
`

// --- subscribers ---

const queryInsertSubscriber = `
INSERT INTO subscribers (id, name, target_url, event_kind, active, secret, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING created_at, updated_at
`

const queryGetSubscriber = `
SELECT id, name, target_url, event_kind, active, secret, created_at, updated_at
FROM subscribers
WHERE id = $1
`

const queryListSubscribers = `
SELECT id, name, target_url, event_kind, active, secret, created_at, updated_at
FROM subscribers
ORDER BY created_at ASC, id ASC
`

const queryUpdateSubscriber = `
UPDATE subscribers
SET name = $2, target_url = $3, event_kind = $4, active = $5, secret = $6,
    updated_at = GREATEST(NOW(), updated_at + interval '1 microsecond')
WHERE id = $1
RETURNING created_at, updated_at
`

const queryDeleteSubscriber = `
DELETE FROM subscribers WHERE id = $1 RETURNING id
`

const queryActiveSubscribers = `
SELECT id, name, target_url, event_kind, active, secret, created_at, updated_at
FROM subscribers
WHERE active = TRUE
  AND event_kind = $1
ORDER BY created_at ASC, id ASC
`

// --- delivery log ---

const queryInsertDeliveryAttempt = `
INSERT INTO delivery_attempts (id, event_seq, subscriber_id, attempt, status_code, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

const queryDeliveredSubscriberIDs = `
SELECT DISTINCT subscriber_id
FROM delivery_attempts
WHERE event_seq = $1
  AND status_code BETWEEN 200 AND 299
`

const queryListDeliveryAttempts = `
SELECT id, event_seq, subscriber_id, attempt, status_code, error, started_at, finished_at
FROM delivery_attempts
WHERE event_seq = $1
ORDER BY started_at ASC
`
