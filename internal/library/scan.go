package library

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"lightbox/internal/enrich"
	"lightbox/internal/photo"
)

const photoColumns = "id, path, name, status, flags, width, height, format, size_bytes, taken_at, camera_make, camera_model, orientation, sha256, phash, duplicate_of, dominant_color, accent_color, is_black_white, caption, is_adult, is_racy, adult_score, racy_score, categories_json, objects_json, thumbnail_key, preview_key, error_message, created_at, updated_at, enriched_at"

func scanPhoto(scanner interface{ Scan(dest ...any) error }) (*photo.Record, error) {
	var (
		rec          photo.Record
		status       string
		flags        int64
		format       sql.NullString
		takenRaw     sql.NullString
		cameraMake   sql.NullString
		cameraModel  sql.NullString
		sha          sql.NullString
		phash        sql.NullInt64
		duplicateOf  sql.NullInt64
		dominant     sql.NullString
		accent       sql.NullString
		blackWhite   int64
		caption      sql.NullString
		adult        int64
		racy         int64
		categories   sql.NullString
		objects      sql.NullString
		thumbnailKey sql.NullString
		previewKey   sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		enrichedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Path,
		&rec.Name,
		&status,
		&flags,
		&rec.Width,
		&rec.Height,
		&format,
		&rec.SizeBytes,
		&takenRaw,
		&cameraMake,
		&cameraModel,
		&rec.Orientation,
		&sha,
		&phash,
		&duplicateOf,
		&dominant,
		&accent,
		&blackWhite,
		&caption,
		&adult,
		&racy,
		&rec.AdultScore,
		&rec.RacyScore,
		&categories,
		&objects,
		&thumbnailKey,
		&previewKey,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&enrichedRaw,
	); err != nil {
		return nil, err
	}

	rec.Status = photo.Status(status)
	rec.Flags = enrich.Kind(flags)
	rec.Format = format.String
	rec.CameraMake = cameraMake.String
	rec.CameraModel = cameraModel.String
	rec.SHA256 = sha.String
	rec.PerceptualHash = uint64(phash.Int64)
	rec.DuplicateOf = duplicateOf.Int64
	rec.DominantColor = dominant.String
	rec.AccentColor = accent.String
	rec.IsBlackWhite = blackWhite != 0
	rec.Caption = caption.String
	rec.IsAdult = adult != 0
	rec.IsRacy = racy != 0
	rec.ThumbnailKey = thumbnailKey.String
	rec.PreviewKey = previewKey.String
	rec.ErrorMessage = errorMessage.String
	if categories.Valid && categories.String != "" {
		if err := json.Unmarshal([]byte(categories.String), &rec.Categories); err != nil {
			return nil, err
		}
	}
	if objects.Valid && objects.String != "" {
		if err := json.Unmarshal([]byte(objects.String), &rec.Objects); err != nil {
			return nil, err
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	rec.TakenAt = parseNullableTime(takenRaw)
	rec.EnrichedAt = parseNullableTime(enrichedRaw)
	return &rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableJSON(value any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func joinList(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return strings.Join(values, ",")
}

func splitList(value sql.NullString) []string {
	if !value.Valid || value.String == "" {
		return nil
	}
	return strings.Split(value.String, ",")
}
