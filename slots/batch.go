package slots

import "court-notifier/types"

// RunBatch matches every request independently, keeping the given order.
// An invalid request becomes an invalid entry and never stops the others.
func RunBatch(requests []types.BookingRequest, intervals []types.MergedInterval) types.Report {
	report := types.Report{Entries: make([]types.ReportEntry, 0, len(requests))}
	for _, req := range requests {
		entry := types.ReportEntry{Request: req}
		res, err := Match(req, intervals)
		switch {
		case err != nil:
			entry.Status = types.StatusInvalid
			entry.Err = err
		case res.Empty():
			entry.Status = types.StatusNoSlots
		default:
			entry.Status = types.StatusMatched
			entry.Result = res
		}
		report.Entries = append(report.Entries, entry)
	}
	return report
}

// Pipeline runs normalize, merge and match over one availability snapshot.
func Pipeline(n *Normalizer, records []types.AvailabilityRecord, requests []types.BookingRequest) (types.Report, []error) {
	courts, dropped := n.Normalize(records)
	return RunBatch(requests, MergeAll(courts)), dropped
}
