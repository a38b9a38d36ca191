package v4

import (
	"regexp"
	"strings"

	"github.com/damb/slink/pkg/inventory"
	log "github.com/sirupsen/logrus"
)

// NegotiatorState names the station negotiator's FSM states
// (spec.md §4.6).
type NegotiatorState int

const (
	StateStation NegotiatorState = iota
	StateSelect
	StateFinished
	StateError
)

// Negotiator drives one client's STATION -> SELECT* -> DATA dance.
// Only one negotiator is live per client at a time; the Dispatcher
// commits its Select on DATA and then clears it. END and ENDFETCH are
// not negotiator transitions.
type Negotiator struct {
	state  NegotiatorState
	Select *inventory.Select
}

// NewNegotiator instantiates a fresh negotiator for a STATION command,
// given the stations it matched from the backend's inventory.
func NewNegotiator(matched []inventory.Station) *Negotiator {
	sel := &inventory.Select{}
	for _, st := range matched {
		ss := &inventory.StationSelect{Station: st.ID, SeqNum: inventory.Next()}
		for _, stream := range st.Streams {
			ss.Streams = append(ss.Streams, &inventory.StreamSelect{
				ID: stream.ID, Format: stream.Format, SubFormat: stream.SubFormat,
				Selected: true,
			})
		}
		sel.Stations = append(sel.Stations, ss)
	}
	return &Negotiator{state: StateStation, Select: sel}
}

// State reports the negotiator's current FSM state.
func (n *Negotiator) State() NegotiatorState { return n.state }

// globToRegexp compiles a glob pattern ('*' -> ".*", '?' -> '.') into
// a compiled, unanchored regular expression, per spec.md §9's design
// note.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return regexp.Compile(sb.String())
}

// OnSelect applies a SELECT command to the negotiator's in-progress
// Select, per spec.md §4.6: compile the stream/format-sub patterns,
// and for every matching stream either mark it excluded or mark it
// selected and adopt the filter if none is set yet.
func (n *Negotiator) OnSelect(sel Select) error {
	switch n.state {
	case StateStation, StateSelect:
		// legal transition
	default:
		n.state = StateError
		return ErrUnexpectedCommand("SELECT is not valid in this negotiator state")
	}

	streamRe, err := globToRegexp(sel.Pattern)
	if err != nil {
		n.state = StateError
		return ErrIncorrectArguments(false, "bad SELECT pattern %q: %v", sel.Pattern, err)
	}
	var formatRe *regexp.Regexp
	if sel.FormatSub != "" {
		formatRe, err = globToRegexp(sel.FormatSub)
		if err != nil {
			n.state = StateError
			return ErrIncorrectArguments(false, "bad SELECT format/subformat %q: %v", sel.FormatSub, err)
		}
	}

	for _, ss := range n.Select.Stations {
		for _, stream := range ss.Streams {
			if !streamRe.MatchString(stream.ID.String()) {
				continue
			}
			if formatRe != nil {
				fs := stream.Format.String() + stream.SubFormat.String()
				if !formatRe.MatchString(fs) {
					continue
				}
			}
			if sel.Exclude {
				stream.Excluded = true
			} else {
				stream.Selected = true
				if sel.Filter != "" {
					stream.ApplyFilter(sel.Filter)
				}
			}
		}
	}

	n.state = StateSelect
	log.WithField("pattern", sel.Pattern).Debug("v4 negotiator applied SELECT")
	return nil
}

// OnData applies a DATA command's sequence-number/time-window
// directives to every station in the negotiator's Select and
// transitions to Finished; the caller then commits the Select.
func (n *Negotiator) OnData(d Data) error {
	switch n.state {
	case StateStation, StateSelect:
		// legal transition
	default:
		n.state = StateError
		return ErrUnexpectedCommand("DATA is not valid in this negotiator state")
	}

	if d.Seq != nil {
		for _, ss := range n.Select.Stations {
			ss.SetSeqNum(*d.Seq)
		}
	}
	if d.Begin != nil {
		for _, ss := range n.Select.Stations {
			for _, stream := range ss.Streams {
				begin := *d.Begin
				stream.StartTime = &begin
				if d.End != nil {
					end := *d.End
					stream.EndTime = &end
				}
			}
		}
	}

	n.state = StateFinished
	return nil
}
