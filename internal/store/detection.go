package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Detection is one classified hand in one frame.
type Detection struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"sessionId"`
	Frame      int64     `json:"frame"`
	Hand       int       `json:"hand"`
	Handedness string    `json:"handedness,omitempty"`
	Score      float64   `json:"score,omitempty"`
	Gesture    string    `json:"gesture"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// GestureCount is the number of detections of one gesture.
type GestureCount struct {
	Gesture string `json:"gesture"`
	Count   int    `json:"count"`
}

// DetectionRepository provides access to detections.
type DetectionRepository struct {
	db *sql.DB
}

// Detections returns the detection repository for this store.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{db: s.db}
}

// Record inserts all detections in one transaction. IDs are filled in on
// success; a zero CreatedAt is set to now.
func (r *DetectionRepository) Record(detections []*Detection) error {
	if len(detections) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO detections (session_id, frame, hand, handedness, score, gesture, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, d := range detections {
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		result, err := stmt.Exec(d.SessionID, d.Frame, d.Hand, d.Handedness, d.Score, d.Gesture, d.Error, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("record frame %d hand %d: %w", d.Frame, d.Hand, err)
		}
		if d.ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListBySession returns a session's detections in frame then hand order.
// limit <= 0 means no limit.
func (r *DetectionRepository) ListBySession(sessionID string, limit int) ([]*Detection, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, session_id, frame, hand, handedness, score, gesture, error, created_at
		 FROM detections WHERE session_id = ? ORDER BY frame, hand LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []*Detection
	for rows.Next() {
		d := &Detection{}
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Frame, &d.Hand, &d.Handedness, &d.Score, &d.Gesture, &d.Error, &d.CreatedAt); err != nil {
			return nil, err
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

// CountByGesture tallies a session's detections per gesture, most frequent
// first. Hands that failed classification are counted under their gesture
// too (normally "unknown").
func (r *DetectionRepository) CountByGesture(sessionID string) ([]GestureCount, error) {
	rows, err := r.db.Query(
		`SELECT gesture, COUNT(*) FROM detections WHERE session_id = ?
		 GROUP BY gesture ORDER BY COUNT(*) DESC, gesture`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []GestureCount
	for rows.Next() {
		var c GestureCount
		if err := rows.Scan(&c.Gesture, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
