package statedb

import (
	"fmt"

	"github.com/damb/slink/pkg/v3"
)

// RecoverState merges db's persisted checkpoints into cfgs, the
// in-memory per-station configuration a v3 session is about to use
// for Configure (spec.md §4.8). For every persisted (sid, seq) whose
// net+sta matches a configured station: when addSelectArgs is set,
// the v3 SELECT argument derived from the sid's stream component is
// appended to that station's Selectors; the station's Seq is set to
// the persisted value iff no value was recorded yet or the persisted
// value sorts strictly greater under a plain lexicographic comparison
// of the hex-encoded sequence numbers.
func RecoverState(db *DB, cfgs []*v3.StationConfig, addSelectArgs bool) error {
	byNetSta := make(map[string]*v3.StationConfig, len(cfgs))
	for _, cfg := range cfgs {
		byNetSta[cfg.Net+cfg.Station] = cfg
	}

	rows, err := db.State()
	if err != nil {
		return err
	}

	for _, row := range rows {
		cfg, ok := byNetSta[row.SID.Station.Net+row.SID.Station.Sta]
		if !ok {
			continue
		}

		if addSelectArgs {
			cfg.Selectors = append(cfg.Selectors, row.SID.SelectArgV3())
		}

		seqHex := fmt.Sprintf("%x", row.Seq)
		if cfg.Seq == nil || seqHex > *cfg.Seq {
			cfg.Seq = &seqHex
		}
	}
	return nil
}
