package main

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS endorsements (
		id                     INTEGER PRIMARY KEY AUTOINCREMENT,
		reviewer_id            TEXT NOT NULL,
		subject_id             TEXT NOT NULL,
		text                   TEXT NOT NULL,
		star_rating            INTEGER NOT NULL CHECK (star_rating BETWEEN 1 AND 5),
		bias_reduction_applied INTEGER NOT NULL DEFAULT 0,
		bias_reduction_at      DATETIME,
		created_at             DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_endorsements_reviewer ON endorsements(reviewer_id);
	CREATE INDEX IF NOT EXISTS idx_endorsements_created ON endorsements(created_at);

	CREATE TABLE IF NOT EXISTS processing_log (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		endorsement_id    INTEGER NOT NULL,
		run_id            TEXT DEFAULT '',
		original_text     TEXT NOT NULL,
		anonymized_text   TEXT,
		normalized_text   TEXT,
		processing_type   TEXT NOT NULL,
		status            TEXT NOT NULL,
		error_message     TEXT DEFAULT '',
		anonymize_outcome TEXT DEFAULT '',
		normalize_outcome TEXT DEFAULT '',
		duration_ms       INTEGER NOT NULL DEFAULT 0,
		created_at        DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pl_endorsement ON processing_log(endorsement_id);
	CREATE INDEX IF NOT EXISTS idx_pl_run ON processing_log(run_id);

	CREATE TABLE IF NOT EXISTS consistency_profiles (
		reviewer_id        TEXT PRIMARY KEY,
		total_reviews      INTEGER NOT NULL,
		average_rating     REAL NOT NULL,
		standard_deviation REAL NOT NULL,
		consistency_score  INTEGER,
		is_consistent      INTEGER NOT NULL,
		issues             TEXT NOT NULL DEFAULT '[]',
		last_analyzed_at   DATETIME NOT NULL
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// --- Endorsements ---

func InsertEndorsement(db *sql.DB, e Endorsement) (int64, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := db.Exec(
		`INSERT INTO endorsements (reviewer_id, subject_id, text, star_rating, bias_reduction_applied, bias_reduction_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ReviewerID, e.SubjectID, e.Text, e.StarRating,
		boolToInt(e.BiasReductionApplied), nullableTime(e.BiasReductionAt), createdAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func GetEndorsementByID(db *sql.DB, id int64) (Endorsement, error) {
	var e Endorsement
	var applied int
	var reducedAt sql.NullTime
	err := db.QueryRow(
		`SELECT id, reviewer_id, subject_id, text, star_rating, bias_reduction_applied, bias_reduction_at, created_at
		 FROM endorsements WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.ReviewerID, &e.SubjectID, &e.Text, &e.StarRating, &applied, &reducedAt, &e.CreatedAt)
	e.BiasReductionApplied = applied != 0
	if reducedAt.Valid {
		e.BiasReductionAt = reducedAt.Time
	}
	return e, err
}

// UpdateEndorsementText overwrites the endorsement text with its processed
// version and stamps the bias-reduction marker. The original text lives on
// in the processing log.
func UpdateEndorsementText(db *sql.DB, id int64, text string, reducedAt time.Time) error {
	_, err := db.Exec(
		`UPDATE endorsements
		 SET text = ?, bias_reduction_applied = 1, bias_reduction_at = ?
		 WHERE id = ?`,
		text, reducedAt, id,
	)
	return err
}

// ListEndorsementsByReviewer returns a reviewer's endorsements in the order
// the analyzer expects: created_at ascending, insertion id as the tie-break
// for equal timestamps.
func ListEndorsementsByReviewer(db *sql.DB, reviewerID string) ([]Endorsement, error) {
	rows, err := db.Query(
		`SELECT id, reviewer_id, subject_id, text, star_rating, bias_reduction_applied, bias_reduction_at, created_at
		 FROM endorsements WHERE reviewer_id = ?
		 ORDER BY created_at ASC, id ASC`,
		reviewerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEndorsements(rows)
}

func ListUnprocessedEndorsements(db *sql.DB, limit int) ([]Endorsement, error) {
	rows, err := db.Query(
		`SELECT id, reviewer_id, subject_id, text, star_rating, bias_reduction_applied, bias_reduction_at, created_at
		 FROM endorsements WHERE bias_reduction_applied = 0
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEndorsements(rows)
}

func ListReviewersWithEndorsementsSince(db *sql.DB, since time.Time) ([]string, error) {
	rows, err := db.Query(
		`SELECT DISTINCT reviewer_id FROM endorsements WHERE created_at >= ? ORDER BY reviewer_id`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanEndorsements(rows *sql.Rows) ([]Endorsement, error) {
	var items []Endorsement
	for rows.Next() {
		var e Endorsement
		var applied int
		var reducedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.ReviewerID, &e.SubjectID, &e.Text, &e.StarRating, &applied, &reducedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BiasReductionApplied = applied != 0
		if reducedAt.Valid {
			e.BiasReductionAt = reducedAt.Time
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// --- Processing Log (append-only) ---

func AppendProcessingLog(db *sql.DB, entry ProcessingLogEntry) error {
	_, err := db.Exec(
		`INSERT INTO processing_log
		 (endorsement_id, run_id, original_text, anonymized_text, normalized_text, processing_type, status, error_message, anonymize_outcome, normalize_outcome, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EndorsementID, entry.RunID, entry.OriginalText,
		nullableString(entry.AnonymizedText), nullableString(entry.NormalizedText),
		string(entry.ProcessingType), entry.Status, entry.ErrorMessage,
		string(entry.AnonymizeOutcome), string(entry.NormalizeOutcome), entry.DurationMs,
	)
	return err
}

func GetProcessingLogByEndorsement(db *sql.DB, endorsementID int64) ([]ProcessingLogEntry, error) {
	rows, err := db.Query(
		`SELECT id, endorsement_id, run_id, original_text, anonymized_text, normalized_text, processing_type, status, error_message, anonymize_outcome, normalize_outcome, duration_ms, created_at
		 FROM processing_log WHERE endorsement_id = ?
		 ORDER BY created_at ASC, id ASC`,
		endorsementID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ProcessingLogEntry
	for rows.Next() {
		var entry ProcessingLogEntry
		var anon, norm sql.NullString
		var ptype, anonOutcome, normOutcome string
		if err := rows.Scan(&entry.ID, &entry.EndorsementID, &entry.RunID, &entry.OriginalText,
			&anon, &norm, &ptype, &entry.Status, &entry.ErrorMessage,
			&anonOutcome, &normOutcome, &entry.DurationMs, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if anon.Valid {
			entry.AnonymizedText = &anon.String
		}
		if norm.Valid {
			entry.NormalizedText = &norm.String
		}
		entry.ProcessingType = ProcessingType(ptype)
		entry.AnonymizeOutcome = StageOutcome(anonOutcome)
		entry.NormalizeOutcome = StageOutcome(normOutcome)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetFailedEndorsementIDsByRun identifies which items of a batch run failed,
// in log order.
func GetFailedEndorsementIDsByRun(db *sql.DB, runID string) ([]int64, error) {
	rows, err := db.Query(
		`SELECT endorsement_id FROM processing_log
		 WHERE run_id = ? AND status = ?
		 ORDER BY id ASC`,
		runID, StatusFailed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- Consistency Profiles (upsert, last-write-wins) ---

func UpsertConsistencyProfile(db *sql.DB, p ConsistencyProfile) error {
	issuesJSON, err := json.Marshal(p.Issues)
	if err != nil {
		return err
	}
	var score sql.NullInt64
	if p.ConsistencyScore != nil {
		score = sql.NullInt64{Int64: int64(*p.ConsistencyScore), Valid: true}
	}
	_, err = db.Exec(
		`INSERT INTO consistency_profiles
		 (reviewer_id, total_reviews, average_rating, standard_deviation, consistency_score, is_consistent, issues, last_analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(reviewer_id) DO UPDATE SET
		   total_reviews = excluded.total_reviews,
		   average_rating = excluded.average_rating,
		   standard_deviation = excluded.standard_deviation,
		   consistency_score = excluded.consistency_score,
		   is_consistent = excluded.is_consistent,
		   issues = excluded.issues,
		   last_analyzed_at = excluded.last_analyzed_at`,
		p.ReviewerID, p.TotalReviews, p.AverageRating, p.StandardDeviation,
		score, boolToInt(p.IsConsistent), string(issuesJSON), p.LastAnalyzedAt,
	)
	return err
}

func GetConsistencyProfile(db *sql.DB, reviewerID string) (ConsistencyProfile, error) {
	var p ConsistencyProfile
	var score sql.NullInt64
	var consistent int
	var issuesJSON string
	err := db.QueryRow(
		`SELECT reviewer_id, total_reviews, average_rating, standard_deviation, consistency_score, is_consistent, issues, last_analyzed_at
		 FROM consistency_profiles WHERE reviewer_id = ?`,
		reviewerID,
	).Scan(&p.ReviewerID, &p.TotalReviews, &p.AverageRating, &p.StandardDeviation,
		&score, &consistent, &issuesJSON, &p.LastAnalyzedAt)
	if err != nil {
		return p, err
	}
	if score.Valid {
		v := int(score.Int64)
		p.ConsistencyScore = &v
	}
	p.IsConsistent = consistent != 0
	if err := json.Unmarshal([]byte(issuesJSON), &p.Issues); err != nil {
		return p, err
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
