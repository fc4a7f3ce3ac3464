package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"StockScreener/internal/scan"
)

// FormatScanReport renders a finished scan as a console report. Accepted
// symbols are ranked by proximity to their MA55 (smallest absolute
// deviation first) and capped at topN; topN <= 0 lists everything.
func FormatScanReport(res *scan.Result, topN int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Scan %s | profile=%s | %s\n",
		res.SessionID, res.Profile, res.StartedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("State: %s | scanned %d/%d in %s\n",
		res.State,
		res.Stats.Matched+res.Stats.Filtered+res.Stats.Failed,
		res.Stats.Total,
		res.Stats.Elapsed.Round(time.Millisecond)))
	b.WriteString(fmt.Sprintf("Matched: %d | Filtered: %d | Data failures: %d\n",
		res.Stats.Matched, res.Stats.Filtered, res.Stats.Failed))

	if len(res.Accepted) == 0 {
		b.WriteString("\nNo symbols matched.\n")
		return b.String()
	}

	ranked := make([]int, len(res.Accepted))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, c int) bool {
		return math.Abs(res.Accepted[ranked[a]].Snapshot.Deviation) < math.Abs(res.Accepted[ranked[c]].Snapshot.Deviation)
	})
	if topN > 0 && topN < len(ranked) {
		ranked = ranked[:topN]
	}

	b.WriteString(fmt.Sprintf("\nTop %d by MA55 proximity:\n", len(ranked)))
	b.WriteString("  #  Symbol  Name          Close     MA55    Dev%     DEA  Signal\n")
	for i, idx := range ranked {
		r := res.Accepted[idx]
		s := r.Snapshot
		b.WriteString(fmt.Sprintf("%3d  %-6s  %-12s %8.2f %8.2f %+6.2f%% %7.3f  %s\n",
			i+1, r.Symbol, trimName(r.Name, 12), s.Close, s.MA55, s.Deviation*100, s.DEA, s.Signal))
	}
	return b.String()
}

// FormatFailures lists the symbols whose data could not be obtained,
// grouped by reason so systemic provider problems stand out.
func FormatFailures(res *scan.Result) string {
	byReason := map[string][]string{}
	for _, r := range res.Rejected {
		if r.DataFailure {
			byReason[r.Reason] = append(byReason[r.Reason], r.Symbol)
		}
	}
	if len(byReason) == 0 {
		return ""
	}

	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	var b strings.Builder
	b.WriteString("Data failures:\n")
	for _, reason := range reasons {
		symbols := byReason[reason]
		b.WriteString(fmt.Sprintf("  %s (%d): %s\n", reason, len(symbols), strings.Join(symbols, ", ")))
	}
	return b.String()
}

func trimName(name string, max int) string {
	if len([]rune(name)) <= max {
		return name
	}
	return string([]rune(name)[:max-1]) + "…"
}
