package synthpop

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
)

// SaveWorld writes w to path via gob, the standard library's only
// built-in binary codec — there is no domain serialization library
// anywhere in the corpus (see DESIGN.md), so this is the one place the
// builder's output reaches for the standard library directly rather
// than a third-party format.
func SaveWorld(w *World, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "synthpop: creating world file %s", path)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(w); err != nil {
		return errors.Wrapf(err, "synthpop: encoding world to %s", path)
	}
	return nil
}

// LoadWorld reads a World previously written by SaveWorld. Per-area
// building sequence counters are not preserved across the round trip
// (they're unexported bookkeeping the builder alone needs); this is
// safe because no Building is ever created after the builder finishes,
// per World's own invariant.
func LoadWorld(path string) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "synthpop: opening world file %s", path)
	}
	defer f.Close()

	var w World
	if err := gob.NewDecoder(f).Decode(&w); err != nil {
		return nil, errors.Wrapf(err, "synthpop: decoding world from %s", path)
	}
	return &w, nil
}
