package sim

import (
	"sort"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/network"
)

// booking is one committed occupancy on a single physical track.
type booking struct {
	start, end time.Time
}

// slotLine is one physical track of a block: time-ordered, non-overlapping
// bookings separated by at least the block headway on both sides. Trains are
// admitted whole-train-at-a-time in precedence order, so a later-processed
// train may legitimately claim an earlier gap; the fit check keeps that
// backfill physical.
type slotLine struct {
	spacing  time.Duration
	bookings []booking
}

// earliestFit returns the earliest start at or after request where a booking
// of length run fits: clear of the previous occupant by spacing and clear of
// the next occupant's entry by spacing.
func (s *slotLine) earliestFit(request time.Time, run time.Duration) time.Time {
	e := request
	for _, b := range s.bookings {
		if b.start.Sub(e) >= run+s.spacing {
			return e
		}
		if t := b.end.Add(s.spacing); t.After(e) {
			e = t
		}
	}
	return e
}

// occupiedAt reports whether some booking physically covers the instant.
func (s *slotLine) occupiedAt(t time.Time) bool {
	for _, b := range s.bookings {
		if !b.start.After(t) && b.end.After(t) {
			return true
		}
	}
	return false
}

func (s *slotLine) insert(b booking) {
	i := sort.Search(len(s.bookings), func(i int) bool {
		return s.bookings[i].start.After(b.start)
	})
	s.bookings = append(s.bookings, booking{})
	copy(s.bookings[i+1:], s.bookings[i:])
	s.bookings[i] = b
}

// blockPool admits trains onto one block, one slot line per unit of capacity.
type blockPool struct {
	block network.Block
	lines []slotLine
}

func newBlockPool(b network.Block) *blockPool {
	p := &blockPool{block: b, lines: make([]slotLine, b.Capacity)}
	for i := range p.lines {
		p.lines[i].spacing = b.Headway
	}
	return p
}

// acquire admits a train that wants the block at request, choosing the line
// that can take it earliest (lowest line index on ties, so admission is
// deterministic). When the train had to wait, reason tells whether the
// chosen track was still occupied at the request instant (capacity) or
// merely inside a separation window (headway).
func (p *blockPool) acquire(request time.Time) (entry, exit time.Time, reason WaitReason, waited bool) {
	best := 0
	entry = p.lines[0].earliestFit(request, p.block.RunTime)
	for i := 1; i < len(p.lines); i++ {
		if e := p.lines[i].earliestFit(request, p.block.RunTime); e.Before(entry) {
			best, entry = i, e
		}
	}
	exit = entry.Add(p.block.RunTime)
	if entry.After(request) {
		waited = true
		if p.lines[best].occupiedAt(request) {
			reason = WaitCapacity
		} else {
			reason = WaitHeadway
		}
	}
	p.lines[best].insert(booking{start: entry, end: exit})
	return entry, exit, reason, waited
}

// platformPool hands out platform slots at one station. Platform stays have
// open-ended durations until the occupant's onward movement is known, so
// slots are strictly sequential: a slot is reusable the moment its occupant
// departs, and no backfilling into past gaps is attempted.
type platformPool struct {
	stationID   string
	availableAt []time.Time
}

func newPlatformPool(stationID string, count int) *platformPool {
	if count < 1 {
		count = 1
	}
	return &platformPool{stationID: stationID, availableAt: make([]time.Time, count)}
}

// acquire berths an arriving train. pin selects a specific slot when it is a
// valid index; otherwise the least-available slot wins, lowest index on ties.
// The slot is marked busy until release fixes the real departure.
func (p *platformPool) acquire(request time.Time, pin int) (slot int, start time.Time, waited bool) {
	if pin >= 0 && pin < len(p.availableAt) {
		slot = pin
	} else {
		for i := 1; i < len(p.availableAt); i++ {
			if p.availableAt[i].Before(p.availableAt[slot]) {
				slot = i
			}
		}
	}
	start = request
	if start.Before(p.availableAt[slot]) {
		start = p.availableAt[slot]
		waited = true
	}
	p.availableAt[slot] = farFuture
	return slot, start, waited
}

// release frees a slot at the occupant's actual departure time.
func (p *platformPool) release(slot int, departure time.Time) {
	p.availableAt[slot] = departure
}

// farFuture marks a platform slot as held while its occupant's departure is
// still being computed. Any real timestamp in the data sits well before it.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
