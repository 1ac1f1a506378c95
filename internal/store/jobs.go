package store

import (
	"time"
)

// JobRecord is the durable history row written once a job reaches a terminal
// state. Live job state stays in memory; the table only answers "what has
// this instance resolved lately".
type JobRecord struct {
	ID         string     `db:"id"`
	TrackID    string     `db:"track_id"`
	Title      string     `db:"title"`
	Artist     string     `db:"artist"`
	Status     string     `db:"status"`
	Score      int        `db:"score"`
	SourceURL  string     `db:"source_url"`
	FilePath   string     `db:"file_path"`
	ErrorKind  string     `db:"error_kind"`
	Error      string     `db:"error"`
	CreatedAt  time.Time  `db:"created_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

func (db *DB) RecordJob(rec *JobRecord) error {
	query := `INSERT INTO jobs (id, track_id, title, artist, status, score, source_url, file_path, error_kind, error, created_at, finished_at)
		VALUES (:id, :track_id, :title, :artist, :status, :score, :source_url, :file_path, :error_kind, :error, :created_at, :finished_at)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			score = excluded.score,
			source_url = excluded.source_url,
			file_path = excluded.file_path,
			error_kind = excluded.error_kind,
			error = excluded.error,
			finished_at = excluded.finished_at`

	_, err := db.NamedExec(query, rec)
	return err
}

func (db *DB) GetJobRecord(id string) (*JobRecord, error) {
	rec := &JobRecord{}
	err := db.Get(rec, `SELECT * FROM jobs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (db *DB) ListRecentJobs(limit int) ([]*JobRecord, error) {
	var recs []*JobRecord
	err := db.Select(&recs, `SELECT * FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	return recs, err
}

// PruneJobs removes history rows older than the retention window.
func (db *DB) PruneJobs(olderThan time.Duration) (int64, error) {
	res, err := db.Exec(`DELETE FROM jobs WHERE created_at < ?`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
