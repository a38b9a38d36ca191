package v4

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/damb/slink/pkg/inventory"
)

// Command is any parsed v4 command line.
type Command interface {
	Serialize() string
}

// Hello is the v4 "HELLO" command.
type Hello struct{}

func (Hello) Serialize() string { return "HELLO" }

// Bye is the v4 "BYE" command.
type Bye struct{}

func (Bye) Serialize() string { return "BYE" }

// Station is the v4 "STATION <pattern>" command.
type Station struct {
	Pattern string
}

func (c Station) Serialize() string { return "STATION " + c.Pattern }

// Select is the v4 "SELECT <pattern>[.<format><subformat>][:<filter>]"
// command, with an optional "!" exclusion prefix. Exclusion and
// filter are mutually exclusive (spec.md §4.1).
type Select struct {
	Exclude       bool
	Pattern       string
	FormatSub     string // e.g. "2D"; empty if omitted
	Filter        string // empty if omitted
}

func (c Select) Serialize() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if c.Exclude {
		sb.WriteByte('!')
	}
	sb.WriteString(c.Pattern)
	if c.FormatSub != "" {
		sb.WriteByte('.')
		sb.WriteString(c.FormatSub)
	}
	if c.Filter != "" {
		sb.WriteByte(':')
		sb.WriteString(c.Filter)
	}
	return sb.String()
}

// Data is the v4 "DATA [<SequenceNumber> [<begin> [<end>]]]" command.
type Data struct {
	Seq   *inventory.SequenceNumber
	Begin *time.Time
	End   *time.Time
}

func (c Data) Serialize() string {
	if c.Seq == nil {
		return "DATA"
	}
	out := "DATA " + serializeSeq(*c.Seq)
	if c.Begin != nil {
		out += " " + c.Begin.UTC().Format(time.RFC3339)
		if c.End != nil {
			out += " " + c.End.UTC().Format(time.RFC3339)
		}
	}
	return out
}

func serializeSeq(s inventory.SequenceNumber) string {
	switch s.Kind {
	case inventory.SeqAll:
		return "ALL"
	case inventory.SeqNext:
		return "NEXT"
	default:
		return strconv.FormatUint(s.Number, 10)
	}
}

func parseSeq(tok string) (inventory.SequenceNumber, error) {
	switch strings.ToUpper(tok) {
	case "ALL":
		return inventory.All(), nil
	case "NEXT":
		return inventory.Next(), nil
	default:
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return inventory.SequenceNumber{}, ErrIncorrectArguments(false, "bad sequence number %q", tok)
		}
		return inventory.NumberSeq(n), nil
	}
}

// End is the v4 "END" command: begin real-time streaming of every
// committed select.
type End struct{}

func (End) Serialize() string { return "END" }

// EndFetch is the v4 "ENDFETCH" command: drain buffered packets then
// close (the DialUp variant of End).
type EndFetch struct{}

func (EndFetch) Serialize() string { return "ENDFETCH" }

// SlProto is the v4 "SLPROTO <major.minor>" command, legal only
// before the protocol version is locked by any other command.
type SlProto struct {
	Version [2]int
}

func (c SlProto) Serialize() string {
	return fmt.Sprintf("SLPROTO %d.%d", c.Version[0], c.Version[1])
}

// AgentEntry is one "<prog>/<ver>" token of a USERAGENT command.
type AgentEntry struct {
	Program string
	Version string
}

// UserAgent is the v4 "USERAGENT <prog/ver>..." command. It accepts a
// sequence of agent tokens (SPEC_FULL §10.2), not just one, so a
// relaying client can report its own agent plus the upstream's.
type UserAgent struct {
	Agents []AgentEntry
}

func (c UserAgent) Serialize() string {
	parts := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		parts[i] = a.Program + "/" + a.Version
	}
	return "USERAGENT " + strings.Join(parts, " ")
}

// Auth is the v4 "AUTH {userpass u p | token t}" command.
type Auth struct {
	Kind     string // "userpass" or "token"
	User     string
	Password string
	Token    string
}

func (c Auth) Serialize() string {
	switch c.Kind {
	case "userpass":
		return fmt.Sprintf("AUTH userpass %s %s", c.User, c.Password)
	case "token":
		return "AUTH token " + c.Token
	default:
		return "AUTH"
	}
}

// InfoItem enumerates the legal v4 INFO arguments.
type InfoItem string

const (
	InfoID           InfoItem = "ID"
	InfoFormats      InfoItem = "FORMATS"
	InfoCapabilities InfoItem = "CAPABILITIES"
	InfoStations     InfoItem = "STATIONS"
	InfoStreams      InfoItem = "STREAMS"
	InfoConnections  InfoItem = "CONNECTIONS"
)

var noPatternItems = map[InfoItem]bool{
	InfoID: true, InfoFormats: true, InfoCapabilities: true,
}

var validV4InfoItems = map[InfoItem]bool{
	InfoID: true, InfoFormats: true, InfoCapabilities: true,
	InfoStations: true, InfoStreams: true, InfoConnections: true,
}

// Info is the v4 "INFO <item> [<station-pattern> [<stream-pattern>
// [.<fmt><sub>]]]" command.
type Info struct {
	Item             InfoItem
	StationPattern   string
	StreamPattern    string
	StreamFormatSub  string
}

func (c Info) Serialize() string {
	out := "INFO " + string(c.Item)
	if c.StationPattern != "" {
		out += " " + c.StationPattern
		if c.StreamPattern != "" {
			out += " " + c.StreamPattern
			if c.StreamFormatSub != "" {
				out += "." + c.StreamFormatSub
			}
		}
	}
	return out
}

// Unknown wraps an unrecognized keyword.
type Unknown struct {
	Keyword string
}

func (c Unknown) Serialize() string { return c.Keyword }

// Parse parses one already-trimmed v4 command line into a Command.
// info is set on the returned error when the failure should be
// packaged as a JSON INFO error packet rather than an inline ERROR
// line (spec.md §4.1).
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrIncorrectArguments(false, "empty command line")
	}
	fields := strings.Fields(line)
	keyword := strings.ToUpper(fields[0])
	args := fields[1:]

	switch keyword {
	case "HELLO":
		return Hello{}, reqArgs(args, 0)
	case "BYE":
		return Bye{}, reqArgs(args, 0)
	case "STATION":
		if len(args) != 1 {
			return nil, ErrIncorrectArguments(false, "STATION takes exactly 1 argument")
		}
		return Station{Pattern: args[0]}, nil
	case "SELECT":
		if len(args) != 1 {
			return nil, ErrIncorrectArguments(false, "SELECT takes exactly 1 argument")
		}
		return parseSelect(args[0])
	case "DATA":
		return parseData(args)
	case "END":
		return End{}, reqArgs(args, 0)
	case "ENDFETCH":
		return EndFetch{}, reqArgs(args, 0)
	case "SLPROTO":
		if len(args) != 1 {
			return nil, ErrIncorrectArguments(false, "SLPROTO takes exactly 1 argument")
		}
		var major, minor int
		if _, err := fmt.Sscanf(args[0], "%d.%d", &major, &minor); err != nil {
			return nil, ErrIncorrectArguments(false, "malformed SLPROTO version %q", args[0])
		}
		return SlProto{Version: [2]int{major, minor}}, nil
	case "USERAGENT":
		if len(args) == 0 {
			return nil, ErrIncorrectArguments(false, "USERAGENT requires at least one agent token")
		}
		agents := make([]AgentEntry, 0, len(args))
		for _, a := range args {
			parts := strings.SplitN(a, "/", 2)
			if len(parts) != 2 {
				return nil, ErrIncorrectArguments(false, "malformed agent token %q", a)
			}
			agents = append(agents, AgentEntry{Program: parts[0], Version: parts[1]})
		}
		return UserAgent{Agents: agents}, nil
	case "AUTH":
		return parseAuth(args)
	case "INFO":
		return parseInfo(args)
	default:
		return Unknown{Keyword: fields[0]}, nil
	}
}

func reqArgs(args []string, n int) error {
	if len(args) != n {
		return ErrIncorrectArguments(false, "expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func parseSelect(tok string) (Command, error) {
	exclude := false
	if strings.HasPrefix(tok, "!") {
		exclude = true
		tok = tok[1:]
	}
	filter := ""
	if idx := strings.Index(tok, ":"); idx >= 0 {
		filter = tok[idx+1:]
		tok = tok[:idx]
	}
	if exclude && filter != "" {
		return nil, ErrIncorrectArguments(false, "exclude and filter are mutually exclusive")
	}
	formatSub := ""
	if idx := strings.LastIndex(tok, "."); idx >= 0 {
		formatSub = tok[idx+1:]
		tok = tok[:idx]
	}
	return Select{Exclude: exclude, Pattern: tok, FormatSub: formatSub, Filter: filter}, nil
}

func parseData(args []string) (Command, error) {
	if len(args) > 3 {
		return nil, ErrIncorrectArguments(false, "DATA takes at most 3 arguments")
	}
	if len(args) == 0 {
		return Data{}, nil
	}
	seq, err := parseSeq(args[0])
	if err != nil {
		return nil, err
	}
	d := Data{Seq: &seq}
	if len(args) >= 2 {
		t, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			return nil, ErrIncorrectArguments(false, "bad ISO8601 time %q", args[1])
		}
		d.Begin = &t
	}
	if len(args) == 3 {
		t, err := time.Parse(time.RFC3339, args[2])
		if err != nil {
			return nil, ErrIncorrectArguments(false, "bad ISO8601 time %q", args[2])
		}
		d.End = &t
	}
	return d, nil
}

func parseAuth(args []string) (Command, error) {
	if len(args) < 2 {
		return nil, ErrIncorrectArguments(false, "AUTH requires a mechanism and credentials")
	}
	switch strings.ToLower(args[0]) {
	case "userpass":
		if len(args) != 3 {
			return nil, ErrIncorrectArguments(false, "AUTH userpass requires user and password")
		}
		return Auth{Kind: "userpass", User: args[1], Password: args[2]}, nil
	case "token":
		if len(args) != 2 {
			return nil, ErrIncorrectArguments(false, "AUTH token requires exactly one token")
		}
		return Auth{Kind: "token", Token: args[1]}, nil
	default:
		return nil, ErrIncorrectArguments(false, "unknown AUTH mechanism %q", args[0])
	}
}

func parseInfo(args []string) (Command, error) {
	if len(args) == 0 {
		return nil, ErrIncorrectArguments(true, "INFO requires an item argument")
	}
	item := InfoItem(strings.ToUpper(args[0]))
	if !validV4InfoItems[item] {
		return nil, ErrIncorrectArguments(true, "unknown INFO item %q", args[0])
	}
	if noPatternItems[item] {
		if len(args) > 1 {
			return nil, ErrIncorrectArguments(true, "patterns are forbidden for INFO %s", item)
		}
		return Info{Item: item}, nil
	}
	info := Info{Item: item}
	if len(args) >= 2 {
		info.StationPattern = args[1]
	}
	if len(args) >= 3 {
		stream := args[2]
		if idx := strings.LastIndex(stream, "."); idx >= 0 {
			info.StreamFormatSub = stream[idx+1:]
			stream = stream[:idx]
		}
		info.StreamPattern = stream
	}
	if len(args) > 3 {
		return nil, ErrIncorrectArguments(true, "INFO takes at most 3 arguments")
	}
	return info, nil
}
