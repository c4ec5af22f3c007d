package release

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunRecord is one row of the release run ledger: a single variant status
// observed at a point in time during a run. A variant that runs to
// completion leaves one record per status it passed through, all sharing the
// run's ID.
type RunRecord struct {
	RunID        uuid.UUID     `json:"runId"`
	Tag          string        `json:"tag"`
	SourceCommit string        `json:"sourceCommit"`
	Variant      string        `json:"variant"`
	Status       VariantStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
	Created      time.Time     `json:"created"`
}

func (wanted *RunRecord) Compare(found *RunRecord) error {
	if wanted == found {
		return nil
	}
	if (wanted == nil && found != nil) || (wanted != nil && found == nil) {
		return fmt.Errorf("RunRecord: wanted `%v`; found `%v`", wanted, found)
	}

	if wanted.RunID != found.RunID {
		return fmt.Errorf(
			"RunRecord.RunID: wanted `%s`; found `%s`",
			wanted.RunID,
			found.RunID,
		)
	}

	if wanted.Tag != found.Tag {
		return fmt.Errorf(
			"RunRecord.Tag: wanted `%s`; found `%s`",
			wanted.Tag,
			found.Tag,
		)
	}

	if wanted.SourceCommit != found.SourceCommit {
		return fmt.Errorf(
			"RunRecord.SourceCommit: wanted `%s`; found `%s`",
			wanted.SourceCommit,
			found.SourceCommit,
		)
	}

	if wanted.Variant != found.Variant {
		return fmt.Errorf(
			"RunRecord.Variant: wanted `%s`; found `%s`",
			wanted.Variant,
			found.Variant,
		)
	}

	if wanted.Status != found.Status {
		return fmt.Errorf(
			"RunRecord.Status: wanted `%s`; found `%s`",
			wanted.Status,
			found.Status,
		)
	}

	if wanted.Error != found.Error {
		return fmt.Errorf(
			"RunRecord.Error: wanted `%s`; found `%s`",
			wanted.Error,
			found.Error,
		)
	}

	if !wanted.Created.Equal(found.Created) {
		return fmt.Errorf(
			"RunRecord.Created: wanted `%s`; found `%s`",
			wanted.Created,
			found.Created,
		)
	}

	return nil
}

func CompareRunRecords(wanted, found []RunRecord) error {
	if len(wanted) != len(found) {
		return fmt.Errorf(
			"len([]RunRecord): wanted `%d`; found `%d`",
			len(wanted),
			len(found),
		)
	}

	for i := range wanted {
		if err := wanted[i].Compare(&found[i]); err != nil {
			return fmt.Errorf("[]RunRecord[%d]: %w", i, err)
		}
	}

	return nil
}
