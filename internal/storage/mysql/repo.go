// Package mysql persists review approvals in MySQL.
package mysql

import (
	"context"
	"fmt"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"flex_reviews/internal/domain"
)

var _ domain.ApprovalStore = (*Repo)(nil)

type Repo struct{ db *sqlx.DB }

func New(db *sqlx.DB) *Repo { return &Repo{db: db} }

func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

// SetApproved upserts one row per key; unapproving keeps the row with approved = 0.
func (r *Repo) SetApproved(ctx context.Context, ch domain.ApprovalChange) error {
	if len(ch.Keys) == 0 {
		return nil
	}
	var batch any
	if ch.BatchID != "" {
		batch = ch.BatchID
	}

	values := make([]string, 0, len(ch.Keys))
	args := make([]any, 0, len(ch.Keys)*4)
	for _, k := range ch.Keys {
		values = append(values, "(?,?,?,?)")
		args = append(args, string(k.Source), k.ID, ch.Approved, batch)
	}
	q := upsertApprovalsPrefix + strings.Join(values, ",") + upsertApprovalsOnDup
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert approvals: %w", err)
	}
	return nil
}

func (r *Repo) Approved(ctx context.Context, keys []domain.ReviewKey) (map[domain.ReviewKey]bool, error) {
	bySource := make(map[domain.Source][]string)
	for _, k := range keys {
		bySource[k.Source] = append(bySource[k.Source], k.ID)
	}
	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, string(s))
	}
	sort.Strings(sources)

	out := make(map[domain.ReviewKey]bool, len(keys))
	for _, s := range sources {
		src := domain.Source(s)
		q, args, err := sqlx.In(selectApprovedSQL, s, bySource[src])
		if err != nil {
			return nil, fmt.Errorf("build approvals query: %w", err)
		}
		var ids []string
		if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(q), args...); err != nil {
			return nil, fmt.Errorf("select approvals: %w", err)
		}
		for _, id := range ids {
			out[domain.ReviewKey{Source: src, ID: id}] = true
		}
	}
	return out, nil
}
