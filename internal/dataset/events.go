package dataset

import "github.com/cdtdelta/4n6graph/internal/model"

// Events is the raw event store: both event collections, deduplicated by id
// with last-write-wins, and indexed for id lookups.
type Events struct {
	fileVersions      []model.FileVersion
	networkActivities []model.NetworkActivity
	fvByID            map[string]int
	naByID            map[string]int
}

// NewEvents copies the given events into a store.
func NewEvents(fvs []model.FileVersion, nas []model.NetworkActivity) *Events {
	ev := &Events{
		fvByID: make(map[string]int, len(fvs)),
		naByID: make(map[string]int, len(nas)),
	}
	for _, fv := range fvs {
		if i, ok := ev.fvByID[fv.ID]; ok {
			ev.fileVersions[i] = fv
			continue
		}
		ev.fvByID[fv.ID] = len(ev.fileVersions)
		ev.fileVersions = append(ev.fileVersions, fv)
	}
	for _, na := range nas {
		if i, ok := ev.naByID[na.ID]; ok {
			ev.networkActivities[i] = na
			continue
		}
		ev.naByID[na.ID] = len(ev.networkActivities)
		ev.networkActivities = append(ev.networkActivities, na)
	}
	return ev
}

// FileVersions returns the shared slice of file version events.
func (ev *Events) FileVersions() []model.FileVersion { return ev.fileVersions }

// NetworkActivities returns the shared slice of network activity events.
func (ev *Events) NetworkActivities() []model.NetworkActivity { return ev.networkActivities }

// Len returns the number of events of both kinds.
func (ev *Events) Len() int { return len(ev.fileVersions) + len(ev.networkActivities) }

func (ev *Events) FileVersion(id string) (model.FileVersion, bool) {
	i, ok := ev.fvByID[id]
	if !ok {
		return model.FileVersion{}, false
	}
	return ev.fileVersions[i], true
}

func (ev *Events) NetworkActivity(id string) (model.NetworkActivity, bool) {
	i, ok := ev.naByID[id]
	if !ok {
		return model.NetworkActivity{}, false
	}
	return ev.networkActivities[i], true
}

// Lookup resolves the timestamp and size of an event of the given link kind.
// Its signature matches timeindex.Lookup.
func (ev *Events) Lookup(kind model.LinkKind, id string) (timestamp, size int64, ok bool) {
	switch kind {
	case model.LinkFileVersion:
		fv, ok := ev.FileVersion(id)
		return fv.Timestamp, fv.Size, ok
	case model.LinkNetworkActivity:
		na, ok := ev.NetworkActivity(id)
		return na.Timestamp, na.Size, ok
	}
	return 0, 0, false
}
