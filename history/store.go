package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/medvis/chexray/training"
)

// Store records training runs and their per-epoch metrics in a SQLite
// database, so runs on the same dataset can be compared later.
type Store struct {
	db *sql.DB
}

// Run describes a completed (or in-progress) training run.
type Run struct {
	ID          int64
	StartedAt   time.Time
	Epochs      int
	BatchSize   int
	BaseLR      float64
	ClassWeight string // "w0=...,w1=..." for quick inspection
	BestEpoch   int
	BestValLoss float64
	Notes       string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at DATETIME NOT NULL,
	epochs INTEGER NOT NULL,
	batch_size INTEGER NOT NULL,
	base_lr REAL NOT NULL,
	class_weight TEXT,
	best_epoch INTEGER DEFAULT 0,
	best_val_loss REAL DEFAULT 0,
	notes TEXT
);
CREATE TABLE IF NOT EXISTS epochs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL,
	epoch INTEGER NOT NULL,
	train_loss REAL,
	train_accuracy REAL,
	val_loss REAL,
	val_accuracy REAL,
	val_precision REAL,
	val_recall REAL,
	val_f1 REAL,
	learning_rate REAL,
	duration_ms INTEGER,
	UNIQUE(run_id, epoch),
	FOREIGN KEY(run_id) REFERENCES runs(id)
);
`

// Open opens (or creates) the run database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %v", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun inserts a new run row and returns its id.
func (s *Store) BeginRun(run Run) (int64, error) {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	result, err := s.db.Exec(`INSERT INTO runs (
		started_at, epochs, batch_size, base_lr, class_weight, notes
	) VALUES (?, ?, ?, ?, ?, ?);`,
		run.StartedAt.Format(time.RFC3339), run.Epochs, run.BatchSize,
		run.BaseLR, run.ClassWeight, run.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %v", err)
	}
	return result.LastInsertId()
}

// RecordEpoch appends one epoch's metrics to a run.
func (s *Store) RecordEpoch(runID int64, m training.EpochMetrics) error {
	_, err := s.db.Exec(`INSERT INTO epochs (
		run_id, epoch, train_loss, train_accuracy,
		val_loss, val_accuracy, val_precision, val_recall, val_f1,
		learning_rate, duration_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		runID, m.Epoch, m.TrainLoss, m.TrainAccuracy,
		m.ValLoss, m.ValAccuracy, m.ValPrecision, m.ValRecall, m.ValF1,
		m.LearningRate, m.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record epoch %d: %v", m.Epoch, err)
	}
	return nil
}

// FinishRun stores the run's final summary.
func (s *Store) FinishRun(runID int64, summary *training.RunSummary) error {
	result, err := s.db.Exec(
		`UPDATE runs SET best_epoch = ?, best_val_loss = ? WHERE id = ?;`,
		summary.BestEpoch, summary.BestValLoss, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %v", runID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

// GetRun fetches a single run by id.
func (s *Store) GetRun(runID int64) (*Run, error) {
	row := s.db.QueryRow(`SELECT id, started_at, epochs, batch_size,
		base_lr, class_weight, best_epoch, best_val_loss, notes
		FROM runs WHERE id = ?;`, runID)

	var run Run
	var startedAt string
	err := row.Scan(&run.ID, &startedAt, &run.Epochs, &run.BatchSize,
		&run.BaseLR, &run.ClassWeight, &run.BestEpoch, &run.BestValLoss, &run.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d: %v", runID, err)
	}
	run.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("run %d has invalid timestamp: %v", runID, err)
	}
	return &run, nil
}

// ListRuns returns runs ordered by start time, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT id, started_at, epochs, batch_size,
		base_lr, class_weight, best_epoch, best_val_loss, notes
		FROM runs ORDER BY started_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %v", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt string
		if err := rows.Scan(&run.ID, &startedAt, &run.Epochs, &run.BatchSize,
			&run.BaseLR, &run.ClassWeight, &run.BestEpoch, &run.BestValLoss, &run.Notes); err != nil {
			return nil, err
		}
		run.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("run %d has invalid timestamp: %v", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// EpochsForRun returns a run's recorded metrics in epoch order.
func (s *Store) EpochsForRun(runID int64) ([]training.EpochMetrics, error) {
	rows, err := s.db.Query(`SELECT epoch, train_loss, train_accuracy,
		val_loss, val_accuracy, val_precision, val_recall, val_f1,
		learning_rate, duration_ms
		FROM epochs WHERE run_id = ? ORDER BY epoch;`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load epochs for run %d: %v", runID, err)
	}
	defer rows.Close()

	var metrics []training.EpochMetrics
	for rows.Next() {
		var m training.EpochMetrics
		var durationMS int64
		if err := rows.Scan(&m.Epoch, &m.TrainLoss, &m.TrainAccuracy,
			&m.ValLoss, &m.ValAccuracy, &m.ValPrecision, &m.ValRecall, &m.ValF1,
			&m.LearningRate, &durationMS); err != nil {
			return nil, err
		}
		m.Duration = time.Duration(durationMS) * time.Millisecond
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
