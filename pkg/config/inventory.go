// Package config loads a static station/stream inventory from an INI
// file and exposes StaticBackend, a server.Backend reference
// implementation that replays synthetic miniSEED-shaped records
// against it (spec.md §9's demo scaffolding, SPEC_FULL §4.9).
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/damb/slink/pkg/inventory"
)

// LoadInventory parses path, an INI file shaped like:
//
//	[station:IU_ANMO]
//	description = Albuquerque, New Mexico
//	start_seq = 0
//	end_seq = 100
//
//	[stream:IU_ANMO:00_B_H_Z]
//	format = 2
//	subformat = D
//	start_time = 2024-01-01T00:00:00Z
//	end_time = 2024-01-02T00:00:00Z
//
// mirroring gocanopen's EDS `[idx]`/`[idx]sub[n]` section-per-entry
// loader, adapted from object-dictionary indices to station/stream
// identifiers.
func LoadInventory(path string) ([]inventory.Station, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load inventory %s: %w", path, err)
	}

	byStation := make(map[string]*inventory.Station)
	var order []string

	for _, sec := range cfg.Sections() {
		net, sta, ok := splitStationSection(sec.Name())
		if !ok {
			continue
		}
		id, err := inventory.NewStationId(net, sta)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", sec.Name(), err)
		}
		st := &inventory.Station{
			ID:          id,
			Description: sec.Key("description").String(),
		}
		if st.StartSeq, err = sec.Key("start_seq").Uint64(); err != nil {
			return nil, fmt.Errorf("section %q: bad start_seq: %w", sec.Name(), err)
		}
		if st.EndSeq, err = sec.Key("end_seq").Uint64(); err != nil {
			return nil, fmt.Errorf("section %q: bad end_seq: %w", sec.Name(), err)
		}
		key := id.String()
		byStation[key] = st
		order = append(order, key)
	}

	for _, sec := range cfg.Sections() {
		net, sta, loc, band, source, subsource, ok := splitStreamSection(sec.Name())
		if !ok {
			continue
		}
		stationKey := net + "_" + sta
		st, ok := byStation[stationKey]
		if !ok {
			return nil, fmt.Errorf("section %q: no matching [station:%s] section", sec.Name(), stationKey)
		}
		streamID, err := inventory.NewStreamId(loc, band, source, subsource)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", sec.Name(), err)
		}
		format, err := parseFormat(sec.Key("format").String())
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", sec.Name(), err)
		}
		subFormat, err := inventory.ParseSubFormat(subFormatByte(sec.Key("subformat").String()))
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", sec.Name(), err)
		}
		startTime, err := time.Parse(time.RFC3339, sec.Key("start_time").String())
		if err != nil {
			return nil, fmt.Errorf("section %q: bad start_time: %w", sec.Name(), err)
		}
		endTime, err := time.Parse(time.RFC3339, sec.Key("end_time").String())
		if err != nil {
			return nil, fmt.Errorf("section %q: bad end_time: %w", sec.Name(), err)
		}

		st.Streams = append(st.Streams, inventory.Stream{
			ID:        streamID,
			Format:    format,
			SubFormat: subFormat,
			StartTime: startTime,
			EndTime:   endTime,
		})
	}

	out := make([]inventory.Station, 0, len(order))
	for _, key := range order {
		out = append(out, *byStation[key])
	}
	return out, nil
}

func splitStationSection(name string) (net, sta string, ok bool) {
	rest, ok := strings.CutPrefix(name, "station:")
	if !ok {
		return "", "", false
	}
	net, sta, ok = strings.Cut(rest, "_")
	return net, sta, ok
}

func splitStreamSection(name string) (net, sta, loc, band, source, subsource string, ok bool) {
	rest, ok := strings.CutPrefix(name, "stream:")
	if !ok {
		return "", "", "", "", "", "", false
	}
	stationPart, streamPart, ok := strings.Cut(rest, ":")
	if !ok {
		return "", "", "", "", "", "", false
	}
	net, sta, ok = strings.Cut(stationPart, "_")
	if !ok {
		return "", "", "", "", "", "", false
	}

	fields := strings.SplitN(streamPart, "_", 4)
	if len(fields) != 4 {
		return "", "", "", "", "", "", false
	}
	return net, sta, fields[0], fields[1], fields[2], fields[3], true
}

func parseFormat(s string) (inventory.Format, error) {
	switch s {
	case "2":
		return inventory.FormatMiniSeed2, nil
	case "3":
		return inventory.FormatMiniSeed3, nil
	default:
		return 0, fmt.Errorf("unknown format %q", s)
	}
}

func subFormatByte(s string) byte {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}
