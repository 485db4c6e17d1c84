package collector

import (
	"fmt"
	"time"
)

const dateLayout = "20060102"

// DefaultQueues are the evaluated queues: normal draft, ranked solo,
// ranked flex and ARAM
var DefaultQueues = []int{400, 420, 440, 450}

// Window is the collection time window, Start inclusive and End exclusive
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window from local midnight of from until local
// midnight of the day after to. Dates use the YYYYMMDD format.
func NewWindow(from, to string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return Window{}, fmt.Errorf("invalid start date %q: %w", from, err)
	}
	last, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return Window{}, fmt.Errorf("invalid end date %q: %w", to, err)
	}
	if last.Before(start) {
		return Window{}, fmt.Errorf("end date %s is before start date %s", to, from)
	}
	return Window{Start: start, End: last.AddDate(0, 0, 1)}, nil
}

// Contains reports whether t lies in the window. A zero bound is open.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	return w.End.IsZero() || t.Before(w.End)
}

// ContainsMillis reports whether a unix millisecond timestamp lies in the window
func (w Window) ContainsMillis(ms int64) bool {
	return w.Contains(time.UnixMilli(ms))
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// queueSet is the set of evaluated queue ids
type queueSet map[int]bool

func newQueueSet(queues []int) queueSet {
	if len(queues) == 0 {
		queues = DefaultQueues
	}
	set := make(queueSet, len(queues))
	for _, q := range queues {
		set[q] = true
	}
	return set
}
