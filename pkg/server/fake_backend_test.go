package server

import (
	"context"
	"regexp"
	"strings"

	"github.com/damb/slink/pkg/inventory"
)

// fakeBackend is a minimal in-memory Backend for server tests: it
// matches stations by simple glob-to-regexp (streamPattern is ignored
// and every stream of a matching station is returned), and replays a
// fixed slice of packets regardless of selection.
type fakeBackend struct {
	stations    []inventory.Station
	packets     [][]byte
	authErr     error
	authCalls   []fakeAuthCall
}

type fakeAuthCall struct {
	kind, user, password, token string
}

func (b *fakeBackend) InventoryStreams(ctx context.Context, stationPattern, streamPattern string) ([]inventory.Station, error) {
	var out []inventory.Station
	stationRe := mustGlob(stationPattern)
	for _, st := range b.stations {
		if stationPattern != "" && !stationRe.MatchString(st.ID.String()) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (b *fakeBackend) Packets(ctx context.Context, sel *inventory.Select, mode StreamMode, tx chan<- PacketOrError) {
	defer close(tx)
	for _, p := range b.packets {
		select {
		case <-ctx.Done():
			return
		case tx <- PacketOrError{Packet: p}:
		}
	}
}

func (b *fakeBackend) Authenticate(ctx context.Context, kind, user, password, token string) error {
	b.authCalls = append(b.authCalls, fakeAuthCall{kind, user, password, token})
	return b.authErr
}

func mustGlob(pattern string) *regexp.Regexp {
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
	return regexp.MustCompile(sb.String())
}
