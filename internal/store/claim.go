package store

import (
	"fmt"
	"time"
)

// ClaimPending atomically claims pending rows under the global concurrency
// budget: it flips up to max(0, limit - current processing count) pending
// rows to processing, stamps started_at, and returns only the rows this call
// flipped. Candidates are ordered by claim priority (chat replies first, then
// use-case lists, then everything else), tie-broken by creation time.
//
// The budget subquery and the status flip run as one statement on the
// serialized write connection, so no two claimers (in this process or
// another) can receive the same row or overshoot the budget together.
// This is the store's "select-and-mark-claimed" capability; a backend with
// row-level locking would implement it with FOR UPDATE SKIP LOCKED instead.
func (s *Store) ClaimPending(limit int) ([]*Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.Write.Query(`
		UPDATE jobs
		SET status = ?, started_at = ?
		WHERE status = ?
		  AND id IN (
			SELECT id FROM jobs
			WHERE status = ?
			ORDER BY priority ASC, created_at ASC
			LIMIT MAX(0, ? - (SELECT COUNT(*) FROM jobs WHERE status = ?))
		  )
		RETURNING `+jobColumns,
		StatusProcessing, formatTime(time.Now()), StatusPending,
		StatusPending, limit, StatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("claim pending jobs: %w", err)
	}
	defer rows.Close()

	var claimed []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		claimed = append(claimed, job)
	}
	return claimed, rows.Err()
}
