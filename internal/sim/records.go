package sim

import "time"

// ResourceKind distinguishes the two contended resource classes.
type ResourceKind string

const (
	ResourceBlock    ResourceKind = "block"
	ResourcePlatform ResourceKind = "platform"
)

// WaitReason codes why a train could not acquire a resource at its natural
// ready time.
type WaitReason string

const (
	// WaitHeadway: the track is clear but the separation from the previous
	// occupant has not yet elapsed.
	WaitHeadway WaitReason = "headway"
	// WaitCapacity: every parallel slot of the resource is still occupied.
	WaitCapacity WaitReason = "capacity"
	// WaitPrecedence: a forced-follower gate keeps the train behind a leader.
	WaitPrecedence WaitReason = "precedence"
)

// ResourceRef names one concrete resource instance.
type ResourceRef struct {
	Kind ResourceKind `json:"kind"`
	ID   string       `json:"id"`
}

// BlockOccupancyRecord is one train's traversal of one block. For a given
// block the intervals held concurrently never exceed its capacity, and
// successive occupants of the same track are separated by the headway.
type BlockOccupancyRecord struct {
	TrainID string    `json:"trainId"`
	BlockID string    `json:"blockId"`
	Entry   time.Time `json:"entry"`
	Exit    time.Time `json:"exit"`
}

// PlatformOccupancyRecord is one train's stay at one station platform slot.
type PlatformOccupancyRecord struct {
	TrainID   string    `json:"trainId"`
	StationID string    `json:"stationId"`
	Slot      int       `json:"slot"`
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
}

// WaitingLedgerEntry records one enforced wait: the train asked for the
// resource at RequestedAt and was admitted at ReadyAt. A single acquisition
// can produce several entries (a precedence wait followed by a capacity
// wait); their RequestedAt/ReadyAt times chain, so wait minutes stay
// additive across reasons.
type WaitingLedgerEntry struct {
	TrainID      string       `json:"trainId"`
	ResourceKind ResourceKind `json:"resourceKind"`
	ResourceID   string       `json:"resourceId"`
	RequestedAt  time.Time    `json:"requestedAt"`
	ReadyAt      time.Time    `json:"readyAt"`
	Reason       WaitReason   `json:"reason"`
}

// WaitMinutes is the enforced wait length in minutes.
func (w WaitingLedgerEntry) WaitMinutes() float64 {
	return w.ReadyAt.Sub(w.RequestedAt).Minutes()
}

// SkippedTrain reports a train excluded from the replay, usually because its
// itinerary references a resource absent from the graph. Skips are data
// quality signals, not failures of the replay as a whole.
type SkippedTrain struct {
	TrainID string `json:"trainId"`
	Reason  string `json:"reason"`
}
