package analytics

import "context"

// ClickStore persists click records.
//
// SaveClick must insert the record, its location and device rows and bump
// the parent link's click count in one transaction. It returns false with a
// nil error when a record with the same EventID already exists, in which
// case nothing is written.
type ClickStore interface {
	SaveClick(ctx context.Context, record *ClickRecord) (bool, error)
}
