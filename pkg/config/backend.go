package config

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/damb/slink/pkg/inventory"
	"github.com/damb/slink/pkg/server"
	"github.com/damb/slink/pkg/v4"
)

// StaticBackend is a server.Backend reference implementation over a
// fixed, INI-loaded inventory. It exists to exercise pkg/server end to
// end and to give cmd/slink-server something real to talk to
// (SPEC_FULL §4.9); it implements no miniSEED decoding, only an
// opaque synthetic payload tagged with an advancing sequence number.
type StaticBackend struct {
	stations []inventory.Station
	tick     time.Duration
	nextSeq  atomic.Uint64
}

// NewStaticBackend wraps stations. tick is the interval at which
// ModeRealTime synthesizes one new record per effectively selected
// stream.
func NewStaticBackend(stations []inventory.Station, tick time.Duration) *StaticBackend {
	b := &StaticBackend{stations: stations, tick: tick}
	var maxEnd uint64
	for _, st := range stations {
		if st.EndSeq > maxEnd {
			maxEnd = st.EndSeq
		}
	}
	b.nextSeq.Store(maxEnd)
	return b
}

func compileGlob(pattern string) (*regexp.Regexp, error) {
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

// InventoryStreams matches stations and, within each, streams by glob
// pattern; an empty pattern matches everything.
func (b *StaticBackend) InventoryStreams(ctx context.Context, stationPattern, streamPattern string) ([]inventory.Station, error) {
	var staRe, streamRe *regexp.Regexp
	var err error
	if stationPattern != "" {
		if staRe, err = compileGlob(stationPattern); err != nil {
			return nil, v4.ErrIncorrectArguments(false, "bad station pattern %q: %v", stationPattern, err)
		}
	}
	if streamPattern != "" {
		if streamRe, err = compileGlob(streamPattern); err != nil {
			return nil, v4.ErrIncorrectArguments(false, "bad stream pattern %q: %v", streamPattern, err)
		}
	}

	var out []inventory.Station
	for _, st := range b.stations {
		if staRe != nil && !staRe.MatchString(st.ID.String()) {
			continue
		}
		if streamRe == nil {
			out = append(out, st)
			continue
		}
		filtered := st
		filtered.Streams = nil
		for _, s := range st.Streams {
			if streamRe.MatchString(s.ID.String()) {
				filtered.Streams = append(filtered.Streams, s)
			}
		}
		out = append(out, filtered)
	}
	return out, nil
}

// Authenticate always succeeds: this backend carries no credential
// store, and policy is explicitly backend-defined (spec.md §9).
func (b *StaticBackend) Authenticate(ctx context.Context, kind, user, password, token string) error {
	return nil
}

// Packets replays synthetic records for every effectively selected
// stream in sel. ModeDialUp drains the station's buffered
// [StartSeq, EndSeq) range (seeded from the negotiated SeqNum) and
// closes tx; ModeRealTime additionally synthesizes one new record per
// tick until ctx is cancelled.
func (b *StaticBackend) Packets(ctx context.Context, sel *inventory.Select, mode server.StreamMode, tx chan<- server.PacketOrError) {
	defer close(tx)

	for _, stSel := range sel.Stations {
		st, ok := b.findStation(stSel.Station)
		if !ok {
			continue
		}
		for _, streamSel := range stSel.Streams {
			if !streamSel.EffectiveSelected() {
				continue
			}
			if !b.drainBuffered(ctx, st, streamSel, stSel.SeqNum, tx) {
				return
			}
		}
	}

	if mode == server.ModeDialUp {
		return
	}

	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, stSel := range sel.Stations {
				st, ok := b.findStation(stSel.Station)
				if !ok {
					continue
				}
				for _, streamSel := range stSel.Streams {
					if !streamSel.EffectiveSelected() {
						continue
					}
					seq := b.nextSeq.Add(1)
					if !b.emit(ctx, st, streamSel, seq, tx) {
						return
					}
				}
			}
		}
	}
}

func (b *StaticBackend) findStation(id inventory.StationId) (inventory.Station, bool) {
	for _, st := range b.stations {
		if st.ID == id {
			return st, true
		}
	}
	return inventory.Station{}, false
}

func (b *StaticBackend) drainBuffered(ctx context.Context, st inventory.Station, sel *inventory.StreamSelect, seqNum inventory.SequenceNumber, tx chan<- server.PacketOrError) bool {
	start := st.StartSeq
	switch seqNum.Kind {
	case inventory.SeqNumber:
		if seqNum.Number+1 > start {
			start = seqNum.Number + 1
		}
	case inventory.SeqNext:
		start = st.EndSeq
	}

	for seq := start; seq < st.EndSeq; seq++ {
		if !b.emit(ctx, st, sel, seq, tx) {
			return false
		}
	}
	return true
}

func (b *StaticBackend) emit(ctx context.Context, st inventory.Station, sel *inventory.StreamSelect, seq uint64, tx chan<- server.PacketOrError) bool {
	raw, err := v4.PackMSRecord(v4.Record{
		Net:       st.ID.Net,
		Sta:       st.ID.Sta,
		Version:   formatVersion(sel.Format),
		SubFormat: byte(sel.SubFormat),
		Raw:       syntheticRecord(st, sel, seq),
	}, seq)
	item := server.PacketOrError{Packet: raw, Err: err}

	select {
	case <-ctx.Done():
		return false
	case tx <- item:
		return true
	}
}

func formatVersion(f inventory.Format) int {
	if f == inventory.FormatMiniSeed3 {
		return 3
	}
	return 2
}

// syntheticRecord fabricates an opaque, fixed-size payload standing
// in for a real miniSEED record: no waveform decoding is implemented,
// per spec.md §1's Non-goals.
func syntheticRecord(st inventory.Station, sel *inventory.StreamSelect, seq uint64) []byte {
	body := st.ID.String() + "/" + sel.ID.String()
	out := make([]byte, 512)
	copy(out, body)
	out[510] = byte(seq >> 8)
	out[511] = byte(seq)
	return out
}
