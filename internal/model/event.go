package model

import (
	"errors"
	"fmt"
)

// ErrUnknownLinkKind is returned when a link kind name is not one of LinkKinds.
var ErrUnknownLinkKind = errors.New("unknown link kind")

// LinkKind tags the three kinds of aggregate link.
type LinkKind string

const (
	LinkPort            LinkKind = "PortLink"
	LinkFileVersion     LinkKind = "FileVersionLink"
	LinkNetworkActivity LinkKind = "NetworkActivityLink"
)

// LinkKinds lists every link kind in display order.
var LinkKinds = []LinkKind{LinkPort, LinkFileVersion, LinkNetworkActivity}

// linkKindAliases accepts the bare event type names the web client used.
var linkKindAliases = map[string]LinkKind{
	"PortLink":            LinkPort,
	"FileVersionLink":     LinkFileVersion,
	"FileVersion":         LinkFileVersion,
	"NetworkActivityLink": LinkNetworkActivity,
	"NetworkActivity":     LinkNetworkActivity,
}

// ParseLinkKind validates a link kind name coming from a UI collaborator.
func ParseLinkKind(s string) (LinkKind, error) {
	if k, ok := linkKindAliases[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLinkKind, s)
}

// Traffic reports whether links of this kind are derived from raw events
// (and therefore carry byte totals and an intensity color).
func (k LinkKind) Traffic() bool {
	return k == LinkFileVersion || k == LinkNetworkActivity
}

// FileVersion records a process writing a new version of a file.
// Timestamps are absolute milliseconds since the Unix epoch.
type FileVersion struct {
	ID        string `json:"id" db:"id"`
	Timestamp int64  `json:"timestamp" db:"timestamp"`
	Source    string `json:"source" db:"source"` // process id
	Target    string `json:"target" db:"target"` // file id
	Size      int64  `json:"fileSize" db:"size"`
	Action    string `json:"action,omitempty" db:"action"`
}

// NetworkActivity records a packet (or flow record) sent between two ports.
type NetworkActivity struct {
	ID        string `json:"id" db:"id"`
	Timestamp int64  `json:"timestamp" db:"timestamp"`
	Source    string `json:"source" db:"source"` // port id
	Target    string `json:"target" db:"target"` // port id
	Size      int64  `json:"length" db:"size"`
	Protocol  string `json:"protocol,omitempty" db:"protocol"`
	Process   string `json:"process,omitempty" db:"process"`
}
