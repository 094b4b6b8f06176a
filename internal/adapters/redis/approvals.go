package redisad

import (
	"context"

	"github.com/redis/go-redis/v9"

	"flex_reviews/internal/domain"
)

const approvalsPrefix = "flex:approvals:"

var _ domain.ApprovalStore = (*Approvals)(nil)

// Approvals keeps one hash per source; a field is present only while the review is approved.
type Approvals struct{ c *redis.Client }

func NewApprovals(c *redis.Client) *Approvals { return &Approvals{c: c} }

func approvalsKey(src domain.Source) string { return approvalsPrefix + string(src) }

func (a *Approvals) SetApproved(ctx context.Context, ch domain.ApprovalChange) error {
	if len(ch.Keys) == 0 {
		return nil
	}
	bySource := groupIDs(ch.Keys)

	_, err := a.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for src, ids := range bySource {
			if ch.Approved {
				vals := make([]any, 0, len(ids)*2)
				for _, id := range ids {
					vals = append(vals, id, "1")
				}
				p.HSet(ctx, approvalsKey(src), vals...)
			} else {
				p.HDel(ctx, approvalsKey(src), ids...)
			}
		}
		return nil
	})
	return err
}

func (a *Approvals) Approved(ctx context.Context, keys []domain.ReviewKey) (map[domain.ReviewKey]bool, error) {
	out := make(map[domain.ReviewKey]bool, len(keys))
	for src, ids := range groupIDs(keys) {
		vals, err := a.c.HMGet(ctx, approvalsKey(src), ids...).Result()
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			if v != nil {
				out[domain.ReviewKey{Source: src, ID: ids[i]}] = true
			}
		}
	}
	return out, nil
}

// groupIDs buckets keys by source, dropping repeats.
func groupIDs(keys []domain.ReviewKey) map[domain.Source][]string {
	out := make(map[domain.Source][]string)
	seen := make(map[domain.ReviewKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out[k.Source] = append(out[k.Source], k.ID)
	}
	return out
}
