package queue

import (
	"database/sql"
	"errors"
	"time"
)

const taskColumns = "id, source_url, title, description, duration_seconds, status, media_path, audio_path, subtitle_path, burned_media_path, metadata_json, findings_json, degraded, qc_score, retry_counts_json, progress_stage, progress_percent, progress_message, error_stage, error_class, error_attempts, error_message, cancel_requested, external_id, created_at, updated_at, last_heartbeat"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id              string
		sourceURL       string
		title           sql.NullString
		description     sql.NullString
		duration        sql.NullFloat64
		statusStr       string
		mediaPath       sql.NullString
		audioPath       sql.NullString
		subtitlePath    sql.NullString
		burnedMediaPath sql.NullString
		metadata        sql.NullString
		findings        sql.NullString
		degraded        sql.NullInt64
		qcScore         sql.NullFloat64
		retryCounts     sql.NullString
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		errorStage      sql.NullString
		errorClass      sql.NullString
		errorAttempts   sql.NullInt64
		errorMessage    sql.NullString
		cancelRequested sql.NullInt64
		externalID      sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceURL,
		&title,
		&description,
		&duration,
		&statusStr,
		&mediaPath,
		&audioPath,
		&subtitlePath,
		&burnedMediaPath,
		&metadata,
		&findings,
		&degraded,
		&qcScore,
		&retryCounts,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&errorStage,
		&errorClass,
		&errorAttempts,
		&errorMessage,
		&cancelRequested,
		&externalID,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:              id,
		SourceURL:       sourceURL,
		Title:           title.String,
		Description:     description.String,
		DurationSeconds: duration.Float64,
		Status:          Status(statusStr),
		MediaPath:       mediaPath.String,
		AudioPath:       audioPath.String,
		SubtitlePath:    subtitlePath.String,
		BurnedMediaPath: burnedMediaPath.String,
		MetadataJSON:    metadata.String,
		FindingsJSON:    findings.String,
		Degraded:        degraded.Int64 != 0,
		QCScore:         qcScore.Float64,
		RetryCountsJSON: retryCounts.String,
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ErrorStage:      errorStage.String,
		ErrorClass:      errorClass.String,
		ErrorAttempts:   int(errorAttempts.Int64),
		ErrorMessage:    errorMessage.String,
		CancelRequested: cancelRequested.Int64 != 0,
		ExternalID:      externalID.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			task.LastHeartbeat = &heartbeat
		}
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
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

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
