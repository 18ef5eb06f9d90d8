package reconcile

import (
	"fmt"

	"scenefetch/internal/usgs"
)

// Status vocabulary of the remote download queue. Anything outside it is a
// protocol violation.
var (
	readyStatuses = map[string]struct{}{
		"Proxied":   {},
		"Available": {},
	}
	preparingStatuses = map[string]struct{}{
		"Preparing": {},
		"Queued":    {},
		"Staging":   {},
	}
)

// ReadyDownload is a queue entry whose resource can be fetched now.
type ReadyDownload struct {
	EntityID  string
	DisplayID string
	URL       string
}

// ProtocolError reports a queue entry whose status text is outside the
// known vocabulary.
type ProtocolError struct {
	EntityID string
	Status   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("reconcile: unknown download status %q for entity %s", e.Status, e.EntityID)
}

// Classify partitions queue entries into downloads ready to fetch (keyed by
// download id) and entity ids still being prepared. Entries whose entity id
// is already in seen are skipped; newly ready entities join the returned
// seen set, which is a fresh copy. The caller's set is never mutated, and
// on a ProtocolError no partial result is published.
func Classify(entries []usgs.QueueEntry, seen map[string]struct{}) (map[string]struct{}, map[int]ReadyDownload, map[string]struct{}, error) {
	nextSeen := make(map[string]struct{}, len(seen)+len(entries))
	for id := range seen {
		nextSeen[id] = struct{}{}
	}
	ready := make(map[int]ReadyDownload)
	preparing := make(map[string]struct{})

	for _, entry := range entries {
		if _, ok := seen[entry.EntityID]; ok {
			continue
		}
		if _, ok := readyStatuses[entry.StatusText]; ok {
			ready[entry.DownloadID] = ReadyDownload{
				EntityID:  entry.EntityID,
				DisplayID: entry.DisplayID,
				URL:       entry.URL,
			}
			nextSeen[entry.EntityID] = struct{}{}
			continue
		}
		if _, ok := preparingStatuses[entry.StatusText]; ok {
			preparing[entry.EntityID] = struct{}{}
			continue
		}
		return nil, nil, nil, &ProtocolError{EntityID: entry.EntityID, Status: entry.StatusText}
	}
	return nextSeen, ready, preparing, nil
}
