// Package v3 implements the legacy SeedLink v3 wire grammar, framed
// codec, packet views, and client-side session state machine.
package v3

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrIncorrectArguments and ErrUnsupportedCommand classify v3 command
// parse failures, mirroring the v4 taxonomy in spec.md §4.1.
var (
	ErrIncorrectArguments = errors.New("incorrect arguments")
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// Command is any parsed v3 command line.
type Command interface {
	// Serialize renders the command back to its canonical wire form,
	// without a line terminator.
	Serialize() string
}

// Hello is the v3 "HELLO" command.
type Hello struct{}

func (Hello) Serialize() string { return "HELLO" }

// Bye is the v3 "BYE" command.
type Bye struct{}

func (Bye) Serialize() string { return "BYE" }

// Station is the v3 "STATION <code> [<net>]" command.
type Station struct {
	Code string
	Net  string // empty if omitted
}

func (c Station) Serialize() string {
	if c.Net == "" {
		return "STATION " + c.Code
	}
	return "STATION " + c.Code + " " + c.Net
}

// Select is the v3 "SELECT [<pattern>]" command.
type Select struct {
	Pattern string // empty if omitted (selects everything)
}

func (c Select) Serialize() string {
	if c.Pattern == "" {
		return "SELECT"
	}
	return "SELECT " + c.Pattern
}

// Time is a v3 "YYYY,MM,DD,HH,MM,SS" timestamp, parsed with second
// precision (no sub-second component in v3).
type Time struct {
	time.Time
}

// ParseV3Time parses the v3 comma-separated time format. Trailing
// fields (HH,MM,SS) may be omitted, defaulting to zero.
func ParseV3Time(s string) (Time, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 3 || len(parts) > 6 {
		return Time{}, fmt.Errorf("%w: malformed v3 time %q", ErrIncorrectArguments, s)
	}
	fields := [6]int{0, 1, 1, 0, 0, 0}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Time{}, fmt.Errorf("%w: bad time field %q", ErrIncorrectArguments, p)
		}
		fields[i] = n
	}
	t := time.Date(fields[0], time.Month(fields[1]), fields[2], fields[3], fields[4], fields[5], 0, time.UTC)
	return Time{t}, nil
}

func (t Time) Serialize() string {
	return fmt.Sprintf("%04d,%02d,%02d,%02d,%02d,%02d",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// Data is the v3 "DATA [<seq_hex> [<time>]]" command.
type Data struct {
	Seq  *string // hex-encoded sequence number
	When *Time
}

func (c Data) Serialize() string { return serializeSeqTime("DATA", c.Seq, c.When) }

// Fetch is the v3 "FETCH [<seq_hex> [<time>]]" command.
type Fetch struct {
	Seq  *string
	When *Time
}

func (c Fetch) Serialize() string { return serializeSeqTime("FETCH", c.Seq, c.When) }

func serializeSeqTime(keyword string, seq *string, when *Time) string {
	out := keyword
	if seq != nil {
		out += " " + *seq
		if when != nil {
			out += " " + when.Serialize()
		}
	}
	return out
}

// TimeCmd is the v3 "TIME [<begin> [<end>]]" command. (Named TimeCmd
// to avoid colliding with the Time type above.)
type TimeCmd struct {
	Begin *Time
	End   *Time
}

func (c TimeCmd) Serialize() string {
	out := "TIME"
	if c.Begin != nil {
		out += " " + c.Begin.Serialize()
		if c.End != nil {
			out += " " + c.End.Serialize()
		}
	}
	return out
}

// End is the v3 "END" command, ending the handshake and entering
// DataTransfer phase.
type End struct{}

func (End) Serialize() string { return "END" }

// Batch is the v3 "BATCH" command, switching the negotiator into
// pipelined (non-acknowledged) mode.
type Batch struct{}

func (Batch) Serialize() string { return "BATCH" }

// InfoItem enumerates the legal v3 INFO arguments.
type InfoItem string

const (
	InfoID          InfoItem = "ID"
	InfoCapabilities InfoItem = "CAPABILITIES"
	InfoStations    InfoItem = "STATIONS"
	InfoStreams     InfoItem = "STREAMS"
	InfoGaps        InfoItem = "GAPS"
	InfoConnections InfoItem = "CONNECTIONS"
	InfoAll         InfoItem = "ALL"
)

var validInfoItems = map[InfoItem]bool{
	InfoID: true, InfoCapabilities: true, InfoStations: true,
	InfoStreams: true, InfoGaps: true, InfoConnections: true, InfoAll: true,
}

// Info is the v3 "INFO <item>" command.
type Info struct {
	Item InfoItem
}

func (c Info) Serialize() string { return "INFO " + string(c.Item) }

// Unknown wraps an unrecognized keyword so the caller can reply with a
// typed error instead of disconnecting.
type Unknown struct {
	Keyword string
}

func (c Unknown) Serialize() string { return c.Keyword }

// Parse parses one already-trimmed command line (no CR/LF) into a
// Command. Matching is case-insensitive on the keyword; arguments are
// case-preserving.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty command line", ErrIncorrectArguments)
	}
	fields := strings.Fields(line)
	keyword := strings.ToUpper(fields[0])
	args := fields[1:]

	switch keyword {
	case "HELLO":
		return Hello{}, requireArgs(args, 0)
	case "BYE":
		return Bye{}, requireArgs(args, 0)
	case "STATION":
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("%w: STATION takes 1 or 2 arguments", ErrIncorrectArguments)
		}
		st := Station{Code: args[0]}
		if len(args) == 2 {
			st.Net = args[1]
		}
		return st, nil
	case "SELECT":
		if len(args) > 1 {
			return nil, fmt.Errorf("%w: SELECT takes at most 1 argument", ErrIncorrectArguments)
		}
		sel := Select{}
		if len(args) == 1 {
			sel.Pattern = args[0]
		}
		return sel, nil
	case "DATA":
		seq, when, err := parseSeqTime(args)
		if err != nil {
			return nil, err
		}
		return Data{Seq: seq, When: when}, nil
	case "FETCH":
		seq, when, err := parseSeqTime(args)
		if err != nil {
			return nil, err
		}
		return Fetch{Seq: seq, When: when}, nil
	case "TIME":
		if len(args) > 2 {
			return nil, fmt.Errorf("%w: TIME takes at most 2 arguments", ErrIncorrectArguments)
		}
		var begin, end *Time
		if len(args) >= 1 {
			t, err := ParseV3Time(args[0])
			if err != nil {
				return nil, err
			}
			begin = &t
		}
		if len(args) == 2 {
			t, err := ParseV3Time(args[1])
			if err != nil {
				return nil, err
			}
			end = &t
		}
		return TimeCmd{Begin: begin, End: end}, nil
	case "END":
		return End{}, requireArgs(args, 0)
	case "BATCH":
		return Batch{}, requireArgs(args, 0)
	case "INFO":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: INFO takes exactly 1 argument", ErrIncorrectArguments)
		}
		item := InfoItem(strings.ToUpper(args[0]))
		if !validInfoItems[item] {
			return nil, fmt.Errorf("%w: unknown INFO item %q", ErrIncorrectArguments, args[0])
		}
		return Info{Item: item}, nil
	default:
		return Unknown{Keyword: fields[0]}, nil
	}
}

func requireArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: expected %d arguments, got %d", ErrIncorrectArguments, n, len(args))
	}
	return nil
}

func parseSeqTime(args []string) (*string, *Time, error) {
	if len(args) > 2 {
		return nil, nil, fmt.Errorf("%w: expected at most 2 arguments", ErrIncorrectArguments)
	}
	var seq *string
	var when *Time
	if len(args) >= 1 {
		s := args[0]
		seq = &s
	}
	if len(args) == 2 {
		t, err := ParseV3Time(args[1])
		if err != nil {
			return nil, nil, err
		}
		when = &t
	}
	return seq, when, nil
}
