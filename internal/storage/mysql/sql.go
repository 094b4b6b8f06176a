package mysql

const upsertApprovalsPrefix = "INSERT INTO review_approvals\n  (source, review_id, approved, batch_id)\nVALUES "

const upsertApprovalsOnDup = " ON DUPLICATE KEY UPDATE\n" +
	"  approved   = VALUES(approved),\n" +
	"  batch_id   = VALUES(batch_id),\n" +
	"  updated_at = CURRENT_TIMESTAMP"

const selectApprovedSQL = `
SELECT review_id
FROM review_approvals
WHERE source = ? AND approved = 1 AND review_id IN (?)`
