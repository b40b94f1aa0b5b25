package staging

import (
	"context"
	"fmt"
	"strings"
)

// minMeaningfulXMLBytes is the minimum byte length an xml blob must have to
// be considered processable; shorter blobs are treated as empty stubs.
const minMeaningfulXMLBytes = 100

// WorkQuery parameters the cursor-based get_work fetch.
type WorkQuery struct {
	// CursorAppID excludes app_id <= this value. Pass 0 on the first call.
	CursorAppID int64
	// Limit bounds the number of rows fetched (FETCH FIRST ... ROWS, never OFFSET).
	Limit int
	// PartitionMod/PartitionRem restrict to app_id mod PartitionMod = PartitionRem
	// when PartitionMod > 1.
	PartitionMod int
	PartitionRem int
	// ExcludeFailed, when true, also excludes previously failed applications;
	// when false, only previously successful applications are excluded.
	ExcludeFailed bool
	// StartID/EndID bound processing to an inclusive app_id range when non-nil.
	StartID *int64
	EndID   *int64
}

// buildGetWorkQuery renders the get_work SQL and its positional arguments
// for the given schema. Split out from GetWork so the query shape can be
// unit tested without a live connection.
func buildGetWorkQuery(schema string, q WorkQuery) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)

	arg := func(v interface{}) string {
		args = append(args, v)

		return fmt.Sprintf("$%d", len(args))
	}

	clauses = append(clauses, fmt.Sprintf("app_id > %s", arg(q.CursorAppID)))
	clauses = append(clauses, fmt.Sprintf("xml IS NOT NULL AND octet_length(xml) > %s", arg(minMeaningfulXMLBytes)))

	if q.PartitionMod > 1 {
		clauses = append(clauses, fmt.Sprintf("app_id %% %s = %s", arg(q.PartitionMod), arg(q.PartitionRem)))
	}

	excludedStatuses := []string{StatusSuccess}
	if q.ExcludeFailed {
		excludedStatuses = append(excludedStatuses, StatusFailed)
	}

	statusPlaceholders := make([]string, len(excludedStatuses))
	for i, status := range excludedStatuses {
		statusPlaceholders[i] = arg(status)
	}

	clauses = append(clauses, fmt.Sprintf(
		`NOT EXISTS (SELECT 1 FROM %s.processing_log pl WHERE pl.app_id = app_xml.app_id AND pl.status IN (%s))`,
		schema, strings.Join(statusPlaceholders, ", "),
	))

	if q.StartID != nil {
		clauses = append(clauses, fmt.Sprintf("app_id >= %s", arg(*q.StartID)))
	}

	if q.EndID != nil {
		clauses = append(clauses, fmt.Sprintf("app_id <= %s", arg(*q.EndID)))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 1
	}

	query := fmt.Sprintf(
		`SELECT app_id, xml FROM app_xml WHERE %s ORDER BY app_id ASC FETCH FIRST %d ROWS ONLY`,
		strings.Join(clauses, " AND "), limit,
	)

	return query, args
}

// GetWork fetches the next batch of unprocessed applications in app_id order.
func (s *Store) GetWork(ctx context.Context, q WorkQuery) ([]AppXML, error) {
	query, args := buildGetWorkQuery(s.schema, q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get_work query failed: %w", err)
	}
	defer rows.Close()

	var batch []AppXML

	for rows.Next() {
		var item AppXML

		if err := rows.Scan(&item.AppID, &item.XML); err != nil {
			return nil, fmt.Errorf("get_work scan failed: %w", err)
		}

		batch = append(batch, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get_work row iteration failed: %w", err)
	}

	return batch, nil
}
