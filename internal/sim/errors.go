package sim

import "fmt"

// UnknownResourceError marks an itinerary that references a station or a
// station-to-station hop the graph does not contain. It is scoped to one
// train: the replay collects it and carries on with the remaining trains.
type UnknownResourceError struct {
	TrainID  string
	Kind     ResourceKind
	Resource string // station id, or "u->v" for a hop with no block
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("train %s references unknown %s %s", e.TrainID, e.Kind, e.Resource)
}
