package staging

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// errCodeUniqueViolation is the Postgres SQLSTATE for a unique/primary key
// violation.
const errCodeUniqueViolation = "23505"

// WriteLog appends a processing_log row. A unique-key conflict on app_id is
// treated as "someone else won" and is not reported as an error, since the
// log is append-only and concurrent instances may race on the same app_id.
func (s *Store) WriteLog(ctx context.Context, rec ProcessingLogRecord) error {
	query := fmt.Sprintf(
		`INSERT INTO %s.processing_log
			(app_id, status, failure_reason, session_id, app_id_start, app_id_end, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.schema,
	)

	_, err := s.db.ExecContext(ctx, query,
		rec.AppID, rec.Status, rec.FailureReason, rec.SessionID, rec.AppIDStart, rec.AppIDEnd, rec.ProcessedAt,
	)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == errCodeUniqueViolation {
		s.logger.Warn("processing_log write lost race to a concurrent instance", "app_id", rec.AppID)

		return nil
	}

	return fmt.Errorf("processing_log write failed for app_id=%d: %w", rec.AppID, err)
}
