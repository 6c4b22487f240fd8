package persist

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/lib/pq"
)

const (
	defaultBatchSize = 200
	defaultWorkers   = 4
	queueDepth       = 64
)

// Record is one market outcome observed in a cycle: the bet identity plus
// every book's price on it. The writer dedups the identity and appends the
// offers as time-series rows.
type Record struct {
	EventName    string
	SportKey     string
	LeagueKey    string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	MarketKind   models.MarketKind
	OutcomeKey   string
	Point        *float64
	Player       string
	Offers       []models.Offer
}

// EventSHA returns the stable event identity for this record.
func (r Record) EventSHA() string {
	return models.EventSHA(r.EventName, r.CommenceTime.UTC().Unix(), r.SportKey)
}

// Writer appends observed offers to Postgres behind the hot path. It runs
// a bounded worker pool so persistence never delays a cache swap, batches
// rows per transaction, and retries a failed batch once before dropping it.
type Writer struct {
	db        *sql.DB
	batchSize int

	batchCh  chan []Record
	workers  int
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWriter creates a persistence writer. Zero batchSize/workers select
// the defaults (200 rows per transaction, 4 workers).
func NewWriter(db *sql.DB, batchSize, workers int) *Writer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Writer{
		db:        db,
		batchSize: batchSize,
		batchCh:   make(chan []Record, queueDepth),
		workers:   workers,
	}
}

// Start launches the worker pool.
func (w *Writer) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for batch := range w.batchCh {
				w.writeBatchWithRetry(ctx, batch)
			}
		}()
	}
}

// Stop drains queued batches and waits for the workers to finish.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.batchCh)
	})
	w.wg.Wait()
}

// Enqueue splits records into batches and hands them to the pool.
func (w *Writer) Enqueue(records []Record) {
	for start := 0; start < len(records); start += w.batchSize {
		end := start + w.batchSize
		if end > len(records) {
			end = len(records)
		}
		w.batchCh <- records[start:end]
	}
}

// Ping reports store connectivity for health checks.
func (w *Writer) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

// writeBatchWithRetry retries a failed batch once, then drops it. A
// persistence failure never propagates to the read path.
func (w *Writer) writeBatchWithRetry(ctx context.Context, batch []Record) {
	if err := w.writeBatch(ctx, batch); err != nil {
		fmt.Printf("[persist] batch of %d failed, retrying once: %v\n", len(batch), err)

		if err := w.writeBatch(ctx, batch); err != nil {
			fmt.Printf("[persist] batch of %d dropped: %v\n", len(batch), err)
		}
	}
}

// writeBatch persists one batch in a single transaction:
// upsert events, resolve bet identities, append offer rows.
func (w *Writer) writeBatch(ctx context.Context, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := w.upsertEvents(ctx, tx, batch); err != nil {
		return fmt.Errorf("upsert events: %w", err)
	}

	betIDs, err := w.resolveBets(ctx, tx, batch)
	if err != nil {
		return fmt.Errorf("resolve bets: %w", err)
	}

	if err := w.insertOffers(ctx, tx, batch, betIDs); err != nil {
		return fmt.Errorf("insert offers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// upsertEvents creates events on first observation and corrects commence
// time drift on later ones.
func (w *Writer) upsertEvents(ctx context.Context, tx *sql.Tx, batch []Record) error {
	seen := make(map[string]bool, len(batch))

	var shas, names, sports, leagues, homes, aways []string
	var commenceTimes []time.Time

	for _, rec := range batch {
		sha := rec.EventSHA()
		if seen[sha] {
			continue
		}
		seen[sha] = true

		shas = append(shas, sha)
		names = append(names, rec.EventName)
		sports = append(sports, rec.SportKey)
		leagues = append(leagues, rec.LeagueKey)
		homes = append(homes, rec.HomeTeam)
		aways = append(aways, rec.AwayTeam)
		commenceTimes = append(commenceTimes, rec.CommenceTime.UTC())
	}

	query := `
		INSERT INTO events (event_sha, event_name, sport_key, league_key, home_team, away_team, commence_time)
		SELECT UNNEST($1::text[]), UNNEST($2::text[]), UNNEST($3::text[]),
		       UNNEST($4::text[]), UNNEST($5::text[]), UNNEST($6::text[]), UNNEST($7::timestamptz[])
		ON CONFLICT (event_sha)
		DO UPDATE SET commence_time = EXCLUDED.commence_time
	`

	_, err := tx.ExecContext(ctx, query,
		pq.Array(shas), pq.Array(names), pq.Array(sports),
		pq.Array(leagues), pq.Array(homes), pq.Array(aways), pq.Array(commenceTimes),
	)
	return err
}

// resolveBets looks up or creates the bet row for each record and returns
// its id, in batch order. The identity tuple is UNIQUE, so the same bet is
// reused across cycles.
func (w *Writer) resolveBets(ctx context.Context, tx *sql.Tx, batch []Record) ([]int64, error) {
	query := `
		INSERT INTO bets (event_sha, market_kind, outcome_key, point, player)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_sha, market_kind, outcome_key, COALESCE(point, 'NaN'::numeric), player)
		DO UPDATE SET event_sha = EXCLUDED.event_sha
		RETURNING id
	`

	ids := make([]int64, len(batch))

	for i, rec := range batch {
		var point sql.NullFloat64
		if rec.Point != nil {
			point = sql.NullFloat64{Float64: *rec.Point, Valid: true}
		}

		var id int64
		err := tx.QueryRowContext(ctx, query,
			rec.EventSHA(), string(rec.MarketKind), rec.OutcomeKey, point, rec.Player,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("bet %s/%s/%s: %w", rec.EventName, rec.MarketKind, rec.OutcomeKey, err)
		}

		ids[i] = id
	}

	return ids, nil
}

// insertOffers appends one row per observed (book, price) with the
// snapshot timestamp. Offers are append-only.
func (w *Writer) insertOffers(ctx context.Context, tx *sql.Tx, batch []Record, betIDs []int64) error {
	var (
		ids         []int64
		books       []string
		prices      []int64
		observedAts []time.Time
	)

	for i, rec := range batch {
		for _, offer := range rec.Offers {
			ids = append(ids, betIDs[i])
			books = append(books, offer.BookKey)
			prices = append(prices, int64(offer.Price))
			observedAts = append(observedAts, offer.ObservedAt.UTC())
		}
	}

	if len(ids) == 0 {
		return nil
	}

	query := `
		INSERT INTO offers (bet_id, book_key, price, observed_at)
		SELECT UNNEST($1::bigint[]), UNNEST($2::text[]), UNNEST($3::int[]), UNNEST($4::timestamptz[])
	`

	_, err := tx.ExecContext(ctx, query,
		pq.Array(ids), pq.Array(books), pq.Array(prices), pq.Array(observedAts),
	)
	return err
}
