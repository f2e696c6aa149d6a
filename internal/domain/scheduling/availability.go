package scheduling

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Lookup outcomes reported alongside a SlotResult.
const (
	OutcomeAvailable   = "available"
	OutcomeFullyBooked = "fully_booked"
	OutcomeNotOffered  = "not_offered"
	OutcomeUnknownType = "unknown_type"
	OutcomeError       = "error"
)

// Interval is a half-open period [Start, End) on a single day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// IntervalAt returns the interval of the given length starting at start.
func IntervalAt(start TimeOfDay, minutes int) Interval {
	return Interval{Start: start, End: start.Add(minutes)}
}

// Overlaps reports whether a and b share any time. Back-to-back intervals do
// not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// Resolution is the bookable time on one date for one doctor and
// consultation type.
type Resolution struct {
	Offered bool
	Reason  string
	Windows []Window
}

// ResolveAvailability intersects the doctor's hours with each window of the
// consultation type. A nil doc is treated as DefaultAvailability. The day is
// not offered when either the doctor or the consultation type skips that
// weekday; both must allow it.
func ResolveAvailability(doc *DoctorAvailability, ct *ConsultationType, date Date) Resolution {
	if doc == nil {
		doc = DefaultAvailability(uuid.Nil)
	}
	wd := date.Weekday()
	switch {
	case !doc.IsAvailable:
		return Resolution{Reason: "The doctor is not accepting appointments at this time."}
	case !doc.WorksOn(wd):
		return Resolution{Reason: fmt.Sprintf("The doctor does not hold clinic on %ss.", wd)}
	case !ct.OffersOn(wd):
		return Resolution{Reason: fmt.Sprintf("%s is only offered on %s.", ct.Name, dayList(ct.AllowedDays))}
	}

	res := Resolution{Offered: true}
	dw := doc.Window()
	for _, cw := range ct.Windows {
		w := Window{Start: max(dw.Start, cw.Start), End: min(dw.End, cw.End)}
		if w.Start >= w.End {
			continue
		}
		res.Windows = append(res.Windows, w)
	}
	if len(res.Windows) == 0 {
		res.Reason = fmt.Sprintf("The doctor's hours (%s to %s) do not cover %s hours.",
			dw.Start.Display(), dw.End.Display(), ct.Name)
	}
	return res
}

func dayList(days []time.Weekday) string {
	sorted := slices.Clone(days)
	// Monday first, Sunday last.
	slices.SortFunc(sorted, func(a, b time.Weekday) int {
		return (int(a)+6)%7 - (int(b)+6)%7
	})
	names := lo.Map(sorted, func(d time.Weekday, _ int) string { return d.String() })
	switch len(names) {
	case 0:
		return "no days"
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

// GenerateSlots yields slot starts from w.Start in steps of duration minutes
// while the whole slot fits inside w.
func GenerateSlots(w Window, duration int) iter.Seq[TimeOfDay] {
	return func(yield func(TimeOfDay) bool) {
		if duration <= 0 {
			return
		}
		for t := w.Start; t.Add(duration) <= w.End; t = t.Add(duration) {
			if !yield(t) {
				return
			}
		}
	}
}

// FilterConflicts drops every candidate whose slot of the given duration
// overlaps a busy interval. The result is sorted and free of duplicates.
func FilterConflicts(candidates []TimeOfDay, busy []Interval, duration int) []TimeOfDay {
	free := lo.Filter(candidates, func(c TimeOfDay, _ int) bool {
		slot := IntervalAt(c, duration)
		return !lo.SomeBy(busy, func(b Interval) bool { return Overlaps(slot, b) })
	})
	free = lo.Uniq(free)
	slices.Sort(free)
	return free
}

// SlotView is one bookable time as returned to clients.
type SlotView struct {
	Time    string `json:"time"`
	Display string `json:"display"`
}

// SlotResult is the answer to a slot lookup. An empty Slots list is always
// accompanied by a Message saying why.
type SlotResult struct {
	Date             string     `json:"date"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	ConsultationType string     `json:"consultation_type"`
	DurationMinutes  int        `json:"duration_minutes"`
	Slots            []SlotView `json:"slots"`
	Message          string     `json:"message,omitempty"`
	Outcome          string     `json:"-"`
}

// Has reports whether t is one of the offered slots.
func (r SlotResult) Has(t TimeOfDay) bool {
	return lo.ContainsBy(r.Slots, func(s SlotView) bool { return s.Time == t.String() })
}

// FindAvailableSlots runs the whole lookup: resolve windows, generate slots
// and drop those overlapping busy intervals.
func FindAvailableSlots(doc *DoctorAvailability, ct *ConsultationType, date Date, busy []Interval) SlotResult {
	duration := ct.DurationMinutes
	if duration <= 0 {
		duration = SlotDuration(ct.Code)
	}
	result := SlotResult{
		Date:             date.String(),
		ConsultationType: ct.Code,
		DurationMinutes:  duration,
		Slots:            []SlotView{},
	}
	if doc != nil {
		result.DoctorID = doc.DoctorID
	}

	res := ResolveAvailability(doc, ct, date)
	if !res.Offered || len(res.Windows) == 0 {
		result.Message = res.Reason
		result.Outcome = OutcomeNotOffered
		return result
	}

	var candidates []TimeOfDay
	for _, w := range res.Windows {
		candidates = slices.AppendSeq(candidates, GenerateSlots(w, duration))
	}
	free := FilterConflicts(candidates, busy, duration)
	if len(free) == 0 {
		result.Message = fmt.Sprintf("All %s slots on %s are already booked.", ct.Name, date.Format("January 2, 2006"))
		result.Outcome = OutcomeFullyBooked
		return result
	}

	result.Slots = lo.Map(free, func(t TimeOfDay, _ int) SlotView {
		return SlotView{Time: t.String(), Display: t.Display()}
	})
	result.Outcome = OutcomeAvailable
	return result
}

// busyIntervals converts appointments and live holds into busy intervals,
// each using its own consultation type's duration. Cancelled appointments
// and holds in skip are left out.
func busyIntervals(appts []*Appointment, holds []*ConsultationTimeSlot, duration func(code string) int, skipHold uuid.UUID) []Interval {
	busy := make([]Interval, 0, len(appts)+len(holds))
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		busy = append(busy, IntervalAt(a.AppointmentTime, duration(a.ConsultationType)))
	}
	for _, h := range holds {
		if h.ID == skipHold {
			continue
		}
		busy = append(busy, IntervalAt(h.SlotTime, duration(h.ConsultationType)))
	}
	return busy
}
