// Package snapshots persists the outcome of each valuation cycle so the
// API can serve results between refreshes and the run history stays
// inspectable after the fact.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/bondwatch/internal/database"
	"github.com/aristath/bondwatch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS valuation_runs (
	id             TEXT PRIMARY KEY,
	as_of          TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	universe_count INTEGER NOT NULL,
	valued_count   INTEGER NOT NULL,
	screened_count INTEGER NOT NULL,
	best_secid     TEXT,
	best_yield     REAL,
	best_score     REAL
);
CREATE INDEX IF NOT EXISTS idx_valuation_runs_created
	ON valuation_runs (created_at DESC);

CREATE TABLE IF NOT EXISTS top_picks (
	run_id   TEXT NOT NULL,
	position INTEGER NOT NULL,
	secid    TEXT NOT NULL,
	name     TEXT,
	sector   TEXT,
	yield    REAL,
	score    REAL,
	price    REAL,
	years    REAL,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY (run_id) REFERENCES valuation_runs (id)
);
`

// Run is one persisted valuation cycle
type Run struct {
	ID            string    `json:"id"`
	AsOf          time.Time `json:"as_of"`
	CreatedAt     time.Time `json:"created_at"`
	UniverseCount int       `json:"universe_count"`
	ValuedCount   int       `json:"valued_count"`
	ScreenedCount int       `json:"screened_count"`
	BestSecID     string    `json:"best_secid,omitempty"`
	BestYield     *float64  `json:"best_yield,omitempty"`
	BestScore     *float64  `json:"best_score,omitempty"`
}

// Pick is one ranked bond within a run, ordered by Position starting at 1
type Pick struct {
	RunID    string        `json:"-"`
	Position int           `json:"position"`
	SecID    string        `json:"secid"`
	Name     string        `json:"name"`
	Sector   domain.Sector `json:"sector"`
	Yield    *float64      `json:"yield,omitempty"`
	Score    float64       `json:"score"`
	Price    float64       `json:"price"`
	Years    float64       `json:"years"`
}

// Repository stores valuation runs in bonds.db
type Repository struct {
	db *sql.DB
}

// NewRepository creates a snapshot repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the snapshot tables when missing
func (r *Repository) EnsureSchema() error {
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply snapshot schema: %w", err)
	}
	return nil
}

// SaveRun writes the run and its picks atomically. Pick positions are
// assigned from slice order, 1-based.
func (r *Repository) SaveRun(run Run, picks []Pick) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO valuation_runs
				(id, as_of, created_at, universe_count, valued_count, screened_count,
				 best_secid, best_yield, best_score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.AsOf.UTC().Format(time.RFC3339),
			run.CreatedAt.UTC().Unix(),
			run.UniverseCount,
			run.ValuedCount,
			run.ScreenedCount,
			nullString(run.BestSecID),
			run.BestYield,
			run.BestScore,
		)
		if err != nil {
			return fmt.Errorf("failed to insert valuation run: %w", err)
		}

		for i, p := range picks {
			_, err := tx.Exec(`
				INSERT INTO top_picks
					(run_id, position, secid, name, sector, yield, score, price, years)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, i+1, p.SecID, p.Name, string(p.Sector),
				p.Yield, p.Score, p.Price, p.Years,
			)
			if err != nil {
				return fmt.Errorf("failed to insert pick %s: %w", p.SecID, err)
			}
		}
		return nil
	})
}

// LatestRun returns the most recent run, or (nil, nil) when none exist yet
func (r *Repository) LatestRun() (*Run, error) {
	runs, err := r.RecentRuns(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// RecentRuns returns up to limit runs, newest first
func (r *Repository) RecentRuns(limit int) ([]Run, error) {
	if limit < 1 {
		limit = 1
	}

	rows, err := r.db.Query(`
		SELECT id, as_of, created_at, universe_count, valued_count, screened_count,
		       best_secid, best_yield, best_score
		FROM valuation_runs
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuation runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			asOf      string
			createdAt int64
			bestSecID sql.NullString
		)
		if err := rows.Scan(&run.ID, &asOf, &createdAt,
			&run.UniverseCount, &run.ValuedCount, &run.ScreenedCount,
			&bestSecID, &run.BestYield, &run.BestScore); err != nil {
			return nil, fmt.Errorf("failed to scan valuation run: %w", err)
		}
		run.AsOf, err = time.Parse(time.RFC3339, asOf)
		if err != nil {
			return nil, fmt.Errorf("invalid as_of on run %s: %w", run.ID, err)
		}
		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		run.BestSecID = bestSecID.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// PicksForRun returns the ranked picks of one run in position order
func (r *Repository) PicksForRun(runID string) ([]Pick, error) {
	rows, err := r.db.Query(`
		SELECT run_id, position, secid, name, sector, yield, score, price, years
		FROM top_picks
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query picks: %w", err)
	}
	defer rows.Close()

	var picks []Pick
	for rows.Next() {
		var (
			p      Pick
			name   sql.NullString
			sector sql.NullString
		)
		if err := rows.Scan(&p.RunID, &p.Position, &p.SecID, &name, &sector,
			&p.Yield, &p.Score, &p.Price, &p.Years); err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}
		p.Name = name.String
		p.Sector = domain.Sector(sector.String)
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

// Prune deletes runs older than keep runs, including their picks
func (r *Repository) Prune(keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("must keep at least one run")
	}

	var deleted int64
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM top_picks WHERE run_id NOT IN (
				SELECT id FROM valuation_runs ORDER BY created_at DESC, id LIMIT ?)`, keep); err != nil {
			return fmt.Errorf("failed to prune picks: %w", err)
		}
		res, err := tx.Exec(`
			DELETE FROM valuation_runs WHERE id NOT IN (
				SELECT id FROM valuation_runs ORDER BY created_at DESC, id LIMIT ?)`, keep)
		if err != nil {
			return fmt.Errorf("failed to prune runs: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
