package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/quill/internal/db"
)

// PurgeInput contains parameters for the PurgeCache operation.
type PurgeInput struct {
	Prefix    string         // optional: only keys starting with this ("products:")
	OlderThan *time.Duration // optional: only entries written before now - OlderThan
}

// PurgeOutput contains the result of the PurgeCache operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// PurgeCache deletes entries from the local cache. Prefix and OlderThan
// combine: only entries matching both are removed.
func PurgeCache(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	var (
		count int
		err   error
	)
	if input.OlderThan != nil {
		count, err = db.PurgeOlderThan(ctx, database, db.NamespaceCache, input.Prefix, time.Now().Add(-*input.OlderThan))
	} else {
		count, err = db.DeletePrefix(ctx, database, db.NamespaceCache, input.Prefix)
	}
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input),
	}, nil
}

func formatPurgeMessage(count int, input PurgeInput) string {
	if count == 0 {
		return "No cache entries to purge"
	}

	word := "entry"
	if count > 1 {
		word = "entries"
	}
	msg := fmt.Sprintf("Purged %d cache %s", count, word)

	if input.Prefix != "" {
		msg += fmt.Sprintf(" matching %q", input.Prefix)
	}
	if input.OlderThan != nil {
		msg += fmt.Sprintf(" (written more than %s ago)", input.OlderThan.Round(time.Second))
	}
	return msg
}
