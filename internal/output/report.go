package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jakopako/goapply/internal/types"
	"github.com/olekukonko/tablewriter"
)

type reportRow struct {
	kind   types.OutcomeKind
	reason string
	count  int
}

// PrintReport renders the human readable end-of-run report: the applied and
// skipped counters and how many listings ended with which reason.
func PrintReport(w io.Writer, summary types.RunSummary) error {
	rows := map[string]*reportRow{}
	for _, r := range summary.Log {
		key := string(r.Outcome.Kind) + "/" + r.Outcome.Reason
		if _, ok := rows[key]; !ok {
			rows[key] = &reportRow{kind: r.Outcome.Kind, reason: r.Outcome.Reason}
		}
		rows[key].count++
	}
	sorted := make([]*reportRow, 0, len(rows))
	for _, r := range rows {
		sorted = append(sorted, r)
	}
	// applied first, then skipped, then failed, each by reason
	order := map[types.OutcomeKind]int{types.OutcomeApplied: 0, types.OutcomeSkipped: 1, types.OutcomeFailed: 2}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].kind != sorted[j].kind {
			return order[sorted[i].kind] < order[sorted[j].kind]
		}
		return sorted[i].reason < sorted[j].reason
	})

	fmt.Fprintf(w, "run %s: applied to %d jobs, skipped %d jobs (%d failed)\n",
		summary.RunID, summary.Applied, summary.Skipped, summary.Failed())

	table := tablewriter.NewWriter(w)
	table.Header("Outcome", "Reason", "Listings")
	for _, r := range sorted {
		if err := table.Append([]string{string(r.kind), r.reason, strconv.Itoa(r.count)}); err != nil {
			return err
		}
	}
	table.Footer("total", "", strconv.Itoa(summary.Processed()))
	return table.Render()
}
