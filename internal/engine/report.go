package engine

import (
	"fmt"
	"strings"

	"github.com/aristath/argus/internal/domain"
)

// RenderText lays out flattened result pairs as an aligned two-column
// table, one pair per line, in the order given.
func RenderText(pairs []domain.KV) string {
	width := 0
	for _, kv := range pairs {
		if len(kv.Key) > width {
			width = len(kv.Key)
		}
	}

	var b strings.Builder
	for _, kv := range pairs {
		fmt.Fprintf(&b, "%-*s  %s\n", width, kv.Key, kv.Value)
	}
	return b.String()
}
