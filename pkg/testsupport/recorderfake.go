package testsupport

import (
	"sync"

	"github.com/weberc2/releaser/pkg/release"
)

// RecorderFake collects run ledger records in memory. It's safe for
// concurrent use; variant pipelines record in parallel.
type RecorderFake struct {
	mu      sync.Mutex
	records []release.RunRecord
}

func (rf *RecorderFake) Record(record *release.RunRecord) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	rf.records = append(rf.records, *record)
	return nil
}

// Records returns a copy of the collected records in arrival order.
func (rf *RecorderFake) Records() []release.RunRecord {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return append([]release.RunRecord(nil), rf.records...)
}

// VariantStatuses returns the sequence of statuses recorded for `variant`.
func (rf *RecorderFake) VariantStatuses(
	variant string,
) []release.VariantStatus {
	var out []release.VariantStatus
	for _, record := range rf.Records() {
		if record.Variant == variant {
			out = append(out, record.Status)
		}
	}
	return out
}
