package sqlite

import (
	"database/sql"
	"fmt"

	"malariascope/internal/model"
)

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert adds a run. A run already indexed under the same input path (two
// saves in the same second) is replaced, matching the files on disk.
func (r *RunRepository) Insert(run *model.Run) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM detections WHERE run_id IN (SELECT id FROM runs WHERE input_path = ?)
	`, run.InputPath); err != nil {
		return 0, fmt.Errorf("failed to replace detections: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE input_path = ?`, run.InputPath); err != nil {
		return 0, fmt.Errorf("failed to replace run: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO runs (username, timestamp, input_path, output_path, confidence, iou, detection_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.Username, run.Timestamp, run.InputPath, run.OutputPath, run.Confidence, run.IoU, run.DetectionCount)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// GetByID retrieves a run by its ID. A missing run yields nil, nil.
func (r *RunRepository) GetByID(id int64) (*model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var run model.Run
	err := r.db.Conn().QueryRow(`
		SELECT id, username, timestamp, input_path, output_path, confidence, iou, detection_count
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Username, &run.Timestamp, &run.InputPath, &run.OutputPath,
		&run.Confidence, &run.IoU, &run.DetectionCount)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetAll retrieves runs newest first.
func (r *RunRepository) GetAll(filter *model.RunFilter) ([]model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, username, timestamp, input_path, output_path, confidence, iou, detection_count
		FROM runs
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Username != "" {
		query += " AND username = ?"
		args = append(args, filter.Username)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		if err := rows.Scan(&run.ID, &run.Username, &run.Timestamp, &run.InputPath, &run.OutputPath,
			&run.Confidence, &run.IoU, &run.DetectionCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetTotalCount returns the number of runs matching the filter.
func (r *RunRepository) GetTotalCount(filter *model.RunFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT COUNT(*) FROM runs WHERE 1=1`
	args := []interface{}{}

	if filter.Username != "" {
		query += " AND username = ?"
		args = append(args, filter.Username)
	}

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return count, nil
}

// ExistsByInputPath checks whether a saved input image is already indexed.
func (r *RunRepository) ExistsByInputPath(path string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM runs WHERE input_path = ?`, path).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check run existence: %w", err)
	}
	return count > 0, nil
}

// Delete removes a run and its detections.
func (r *RunRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	// First delete related detections
	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
