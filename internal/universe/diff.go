package universe

import (
	"github.com/lifenet/server/internal/cell"
	"github.com/lifenet/server/internal/rle"
)

// GenStateDiff is the delta between generation Gen0 and Gen1, as an RLE
// Pattern. Gen0 == 0 means Pattern is a full snapshot of Gen1.
type GenStateDiff struct {
	Gen0, Gen1 uint64
	Pattern    rle.Pattern
}

// Diff looks up gen0 and gen1 in the history ring and emits their delta as
// seen through vis. It returns (nil, nil) if either generation (other than
// gen0 == 0, "the beginning of time") is missing from the ring.
func (u *Universe) Diff(gen0, gen1 uint64, vis cell.Visibility) (*GenStateDiff, error) {
	target := u.findGen(gen1)
	if target == nil {
		return nil, nil
	}

	if gen0 == 0 {
		return &GenStateDiff{Gen0: 0, Gen1: gen1, Pattern: rle.FromGrid(target, vis)}, nil
	}

	base := u.findGen(gen0)
	if base == nil {
		return nil, nil
	}
	pair := rle.GenStatePair{Base: base, Target: target}
	return &GenStateDiff{Gen0: gen0, Gen1: gen1, Pattern: rle.FromGrid(pair, vis)}, nil
}

// Apply reconstructs gen1 from diff against whatever of gen0 is already in
// the ring, then writes it into a fresh ring slot. It returns the new
// generation number, or nil if gen0 isn't present and isn't "beginning of
// time", or if a generation >= gen1 is already known (the diff is stale).
func (u *Universe) Apply(diff *GenStateDiff, vis cell.Visibility) (*uint64, error) {
	if diff.Gen0 > 0 && diff.Gen1-diff.Gen0 >= uint64(len(u.history)) {
		return nil, &InvalidDataError{Reason: "diff span exceeds history depth"}
	}

	var base *GenState
	if diff.Gen0 > 0 {
		base = u.findGen(diff.Gen0)
		if base == nil {
			return nil, nil
		}
	}

	var haveAny bool
	var largestPresent uint64
	for _, gs := range u.history {
		if gs.gen.Present && (!haveAny || gs.gen.Value > largestPresent) {
			largestPresent = gs.gen.Value
			haveAny = true
		}
	}
	if haveAny && largestPresent >= diff.Gen1 {
		return nil, nil
	}

	threshold := int64(diff.Gen1) - int64(len(u.history))
	for _, gs := range u.history {
		if gs.gen.Present && int64(gs.gen.Value) <= threshold {
			gs.clearAll()
		}
	}

	destIdx := mod(u.stateIndex+1, len(u.history))
	dest := u.history[destIdx]
	dest.clearAll()
	if base != nil {
		dest.overwriteFrom(base)
	}

	if err := diff.Pattern.ToGrid(dest, vis); err != nil {
		return nil, err
	}

	u.generation = someGen(diff.Gen1)
	u.stateIndex = destIdx
	dest.gen = someGen(diff.Gen1)

	gen1 := diff.Gen1
	return &gen1, nil
}
