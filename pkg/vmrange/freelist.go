// Copyright 2024 The Serenity Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vmrange

import (
	"github.com/google/btree"

	"github.com/Camisul/serenity/pkg/vmaddr"
)

// freeListDegree is the B-tree branching factor backing the free list. The
// free list is expected to hold tens to low hundreds of entries (per-span,
// not per-process-wide), so a modest degree keeps node scans cheap without
// growing tree height unnecessarily.
const freeListDegree = 16

func rangeLess(a, b Range) bool {
	return a.Base < b.Base
}

// freeList is the ordered, non-overlapping, maximally-coalesced sequence of
// currently-free Ranges within some total span. It is not safe for
// concurrent use; callers (RangeAllocator) serialize access externally.
type freeList struct {
	t *btree.BTreeG[Range]
}

func newFreeList() freeList {
	return freeList{t: btree.NewG[Range](freeListDegree, rangeLess)}
}

func (fl freeList) len() int {
	return fl.t.Len()
}

// insert adds r as a new free entry. r must not overlap any existing entry.
func (fl freeList) insert(r Range) {
	fl.t.ReplaceOrInsert(r)
}

// remove deletes the free entry keyed by r.Base.
func (fl freeList) remove(r Range) {
	fl.t.Delete(r)
}

// replace swaps the free entry keyed by old.Base for replacement. Used when
// a carve leaves a single residual fragment in the same slot.
func (fl freeList) replace(old, replacement Range) {
	fl.t.Delete(old)
	fl.t.ReplaceOrInsert(replacement)
}

// firstFit returns the first entry, in ascending Base order, for which fits
// returns true. This is what makes allocation first-fit: candidates are
// visited in address order, and the walk stops at the first match.
func (fl freeList) firstFit(fits func(Range) bool) (Range, bool) {
	var found Range
	var ok bool
	fl.t.Ascend(func(r Range) bool {
		if fits(r) {
			found, ok = r, true
			return false
		}
		return true
	})
	return found, ok
}

// floor returns the free entry with the greatest Base <= addr, if any.
func (fl freeList) floor(addr vmaddr.Addr) (Range, bool) {
	var found Range
	var ok bool
	fl.t.DescendLessOrEqual(Range{Base: addr}, func(r Range) bool {
		found, ok = r, true
		return false
	})
	return found, ok
}

// ceiling returns the free entry with the least Base >= addr, if any.
func (fl freeList) ceiling(addr vmaddr.Addr) (Range, bool) {
	var found Range
	var ok bool
	fl.t.AscendGreaterOrEqual(Range{Base: addr}, func(r Range) bool {
		found, ok = r, true
		return false
	})
	return found, ok
}

// snapshot returns every free entry in ascending Base order.
func (fl freeList) snapshot() []Range {
	out := make([]Range, 0, fl.t.Len())
	fl.t.Ascend(func(r Range) bool {
		out = append(out, r)
		return true
	})
	return out
}

// clone returns a freeList holding an independent copy of fl's entries.
// Mutating the result never affects fl and vice versa.
func (fl freeList) clone() freeList {
	return freeList{t: fl.t.Clone()}
}
