package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/bits"
	"path/filepath"
	"time"

	"lightbox/internal/photo"
)

// AddPhoto registers path as a pending photo. When the path is already in the
// library the existing record is returned with created false.
func (s *Store) AddPhoto(ctx context.Context, path string) (*photo.Record, bool, error) {
	if path == "" {
		return nil, false, errors.New("photo path is required")
	}
	existing, err := s.GetByPath(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	var id int64
	err = s.queryRow(ctx, s.db,
		`INSERT INTO photos (path, name, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?) RETURNING id`,
		path,
		filepath.Base(path),
		photo.StatusPending,
		timestamp,
		timestamp,
	).Scan(&id)
	if err != nil {
		return nil, false, fmt.Errorf("insert photo: %w", err)
	}
	rec, err := s.GetPhoto(ctx, id)
	return rec, true, err
}

// GetPhoto loads a photo with its tags and faces.
func (s *Store) GetPhoto(ctx context.Context, id int64) (*photo.Record, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id)
	return s.loadPhoto(ctx, row, "get photo")
}

// GetByPath loads the photo registered for path.
func (s *Store) GetByPath(ctx context.Context, path string) (*photo.Record, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+photoColumns+` FROM photos WHERE path = ?`, path)
	return s.loadPhoto(ctx, row, "get photo by path")
}

func (s *Store) loadPhoto(ctx context.Context, row *sql.Row, op string) (*photo.Record, error) {
	rec, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rec.Tags, err = s.loadTags(ctx, rec.ID); err != nil {
		return nil, err
	}
	if rec.Faces, err = s.loadFaces(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) loadTags(ctx context.Context, photoID int64) ([]photo.Tag, error) {
	rows, err := s.query(ctx, s.db, `SELECT name, confidence FROM photo_tags WHERE photo_id = ? ORDER BY position`, photoID)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	var tags []photo.Tag
	for rows.Next() {
		var tag photo.Tag
		if err := rows.Scan(&tag.Name, &tag.Confidence); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (s *Store) loadFaces(ctx context.Context, photoID int64) ([]photo.Face, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, x0, y0, x1, y1, confidence, age, gender, emotion FROM faces WHERE photo_id = ? ORDER BY id`, photoID)
	if err != nil {
		return nil, fmt.Errorf("load faces: %w", err)
	}
	defer rows.Close()
	var faces []photo.Face
	for rows.Next() {
		var (
			face            photo.Face
			gender, emotion sql.NullString
		)
		if err := rows.Scan(&face.ID, &face.Box.Min.X, &face.Box.Min.Y, &face.Box.Max.X, &face.Box.Max.Y,
			&face.Confidence, &face.Age, &gender, &emotion); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		face.Gender = gender.String
		face.Emotion = emotion.String
		faces = append(faces, face)
	}
	return faces, rows.Err()
}

// ListPhotos returns photos ordered by id, optionally filtered by status.
// Tags and faces are not loaded.
func (s *Store) ListPhotos(ctx context.Context, statuses ...photo.Status) ([]*photo.Record, error) {
	query := `SELECT ` + photoColumns + ` FROM photos`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`
	return s.listPhotos(ctx, query, args...)
}

// NextPending returns up to limit pending photos, oldest first.
func (s *Store) NextPending(ctx context.Context, limit int) ([]*photo.Record, error) {
	if limit <= 0 {
		limit = 1
	}
	return s.listPhotos(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE status = ? ORDER BY id LIMIT ?`,
		photo.StatusPending, limit)
}

func (s *Store) listPhotos(ctx context.Context, query string, args ...any) ([]*photo.Record, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()
	var out []*photo.Record
	for rows.Next() {
		rec, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SavePhoto writes every persisted field of rec, replacing its tags and
// faces, in one transaction. Face IDs are assigned on rec.
func (s *Store) SavePhoto(ctx context.Context, rec *photo.Record) error {
	if rec == nil || rec.ID == 0 {
		return errors.New("photo record with id is required")
	}
	categories, err := nullableJSON(rec.Categories, len(rec.Categories) == 0)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	objects, err := nullableJSON(rec.Objects, len(rec.Objects) == 0)
	if err != nil {
		return fmt.Errorf("encode objects: %w", err)
	}
	var phash any
	if rec.SHA256 != "" {
		phash = int64(rec.PerceptualHash)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec.UpdatedAt = time.Now().UTC()
	res, err := s.exec(ctx, tx,
		`UPDATE photos
         SET path = ?, name = ?, status = ?, flags = ?, width = ?, height = ?, format = ?, size_bytes = ?,
             taken_at = ?, camera_make = ?, camera_model = ?, orientation = ?, sha256 = ?, phash = ?,
             duplicate_of = ?, dominant_color = ?, accent_color = ?, is_black_white = ?, caption = ?,
             is_adult = ?, is_racy = ?, adult_score = ?, racy_score = ?, categories_json = ?, objects_json = ?,
             thumbnail_key = ?, preview_key = ?, error_message = ?, updated_at = ?, enriched_at = ?
         WHERE id = ?`,
		rec.Path,
		rec.Name,
		rec.Status,
		int64(rec.Flags),
		rec.Width,
		rec.Height,
		nullableString(rec.Format),
		rec.SizeBytes,
		nullableTime(rec.TakenAt),
		nullableString(rec.CameraMake),
		nullableString(rec.CameraModel),
		rec.Orientation,
		nullableString(rec.SHA256),
		phash,
		nullableInt64(rec.DuplicateOf),
		nullableString(rec.DominantColor),
		nullableString(rec.AccentColor),
		boolToInt(rec.IsBlackWhite),
		nullableString(rec.Caption),
		boolToInt(rec.IsAdult),
		boolToInt(rec.IsRacy),
		rec.AdultScore,
		rec.RacyScore,
		categories,
		objects,
		nullableString(rec.ThumbnailKey),
		nullableString(rec.PreviewKey),
		nullableString(rec.ErrorMessage),
		rec.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(rec.EnrichedAt),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update photo %d: no such photo", rec.ID)
	}

	if _, err := s.exec(ctx, tx, `DELETE FROM photo_tags WHERE photo_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for i, tag := range rec.Tags {
		if _, err := s.exec(ctx, tx,
			`INSERT INTO photo_tags (photo_id, name, confidence, position) VALUES (?, ?, ?, ?)`,
			rec.ID, tag.Name, tag.Confidence, i,
		); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag.Name, err)
		}
	}

	if _, err := s.exec(ctx, tx, `DELETE FROM faces WHERE photo_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear faces: %w", err)
	}
	for i := range rec.Faces {
		face := &rec.Faces[i]
		err := s.queryRow(ctx, tx,
			`INSERT INTO faces (photo_id, x0, y0, x1, y1, confidence, age, gender, emotion)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			rec.ID, face.Box.Min.X, face.Box.Min.Y, face.Box.Max.X, face.Box.Max.Y,
			face.Confidence, face.Age, nullableString(face.Gender), nullableString(face.Emotion),
		).Scan(&face.ID)
		if err != nil {
			return fmt.Errorf("insert face: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit photo: %w", err)
	}
	return nil
}

// SetStatus updates a photo's status and error message without touching
// enrichment results.
func (s *Store) SetStatus(ctx context.Context, id int64, status photo.Status, message string) error {
	res, err := s.exec(ctx, s.db,
		`UPDATE photos SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(message), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set status: photo %d not found", id)
	}
	return nil
}

// ResetStuck returns photos left in the enriching state by an interrupted
// process to pending.
func (s *Store) ResetStuck(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, s.db,
		`UPDATE photos SET status = ?, updated_at = ? WHERE status = ?`,
		photo.StatusPending, time.Now().UTC().Format(time.RFC3339Nano), photo.StatusEnriching)
	if err != nil {
		return 0, fmt.Errorf("reset stuck photos: %w", err)
	}
	return res.RowsAffected()
}

// FindDuplicate looks for an earlier photo with the same SHA-256, or failing
// that one whose perceptual hash is within maxDistance bits.
func (s *Store) FindDuplicate(ctx context.Context, photoID int64, sha256 string, phash uint64, maxDistance int) (int64, bool, error) {
	if sha256 != "" {
		var match int64
		err := s.queryRow(ctx, s.db,
			`SELECT id FROM photos WHERE sha256 = ? AND id < ? ORDER BY id LIMIT 1`, sha256, photoID,
		).Scan(&match)
		switch {
		case err == nil:
			return match, true, nil
		case !errors.Is(err, sql.ErrNoRows):
			return 0, false, fmt.Errorf("find exact duplicate: %w", err)
		}
	}
	if maxDistance <= 0 {
		return 0, false, nil
	}

	rows, err := s.query(ctx, s.db,
		`SELECT id, phash FROM photos WHERE phash IS NOT NULL AND id < ? ORDER BY id`, photoID)
	if err != nil {
		return 0, false, fmt.Errorf("find near duplicate: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    int64
			other int64
		)
		if err := rows.Scan(&id, &other); err != nil {
			return 0, false, fmt.Errorf("scan phash: %w", err)
		}
		if bits.OnesCount64(phash^uint64(other)) <= maxDistance {
			return id, false, nil
		}
	}
	return 0, false, rows.Err()
}

// Stats counts photos per status.
func (s *Store) Stats(ctx context.Context) (map[photo.Status]int, error) {
	rows, err := s.query(ctx, s.db, `SELECT status, COUNT(1) FROM photos GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("photo stats: %w", err)
	}
	defer rows.Close()
	stats := make(map[photo.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[photo.Status(status)] = count
	}
	return stats, rows.Err()
}
