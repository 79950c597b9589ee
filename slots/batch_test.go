package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"court-notifier/types"
)

func TestRunBatchKeepsOrderAndIsolatesInvalid(t *testing.T) {
	intervals := []types.MergedInterval{
		interval(courtA, "18:00", "19:00"),
		interval(courtB, "18:00", "19:00"),
	}
	requests := []types.BookingRequest{
		request("18:00", "21:00", 60, 2),
		request("18:00", "18:00", 60, 1),
		request("18:00", "21:00", 60, 3),
	}
	requests[0].ID, requests[1].ID, requests[2].ID = 1, 2, 3

	report := RunBatch(requests, intervals)
	require.Len(t, report.Entries, 3)

	assert.Equal(t, int64(1), report.Entries[0].Request.ID)
	assert.Equal(t, types.StatusMatched, report.Entries[0].Status)
	assert.Equal(t, map[string][]string{"mera 18:00-19:00": {"a", "b"}}, flatten(report.Entries[0].Result))

	assert.Equal(t, types.StatusInvalid, report.Entries[1].Status)
	assert.ErrorIs(t, report.Entries[1].Err, types.ErrInvalidBookingRequest)

	assert.Equal(t, types.StatusNoSlots, report.Entries[2].Status)
	assert.True(t, report.Entries[2].Result.Empty())
}

func TestRunBatchEmpty(t *testing.T) {
	report := RunBatch(nil, nil)
	assert.Empty(t, report.Entries)
}

func TestPipelineFromRawRecords(t *testing.T) {
	var records []types.AvailabilityRecord
	for _, ts := range []string{"18:00", "18:30", "19:00", "18:30"} {
		records = append(records, types.AvailabilityRecord{Club: mera, Date: testDate, Timeslot: types.MustClock(ts), Court: courtA})
	}

	report, dropped := Pipeline(NewNormalizer(nil), records, []types.BookingRequest{request("18:00", "21:00", 90, 1)})
	assert.Empty(t, dropped)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, map[string][]string{"mera 18:00-19:30": {"a"}}, flatten(report.Entries[0].Result))
}
