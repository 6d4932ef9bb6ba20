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
	"fmt"
	"io"

	"gvisor.dev/gvisor/pkg/log"
	"gvisor.dev/gvisor/pkg/tmutex"

	"github.com/Camisul/serenity/pkg/vmaddr"
)

// RangeAllocator manages a single contiguous span of virtual address
// space and hands out sub-ranges on request. Free space is tracked as a
// sorted, non-overlapping, maximally-coalesced freeList; allocation is
// first-fit only.
//
// All mutating and observational methods serialize on lock. lock is a
// tmutex.Mutex rather than sync.Mutex: it requires an explicit Init call
// before its first Lock, which New performs, and it exposes TryLock should
// a future non-blocking diagnostic path need one.
//
// The zero RangeAllocator is not usable; construct one with New, then
// initialize it with InitializeWithRange or InitializeFromParent exactly
// once before any other method is called.
type RangeAllocator struct {
	lock tmutex.Mutex

	// initialized guards against double-initialization and use-before-init.
	initialized bool

	// total is the immutable span under management, set at initialization.
	total Range

	// free is the free list. Protected by lock.
	free freeList

	// guardPages, when true, makes AllocateAnywhere require 2*pageSize
	// extra bytes in a candidate and place the returned range pageSize
	// bytes past the candidate's base. Only the returned range is taken
	// out of the free list; the padding on either side stays free. Fixed
	// at construction time so that AllocateSpecific callers cannot bypass
	// it per call.
	guardPages bool
	pageSize   uint64

	// debugDump, when non-nil, receives a Dump of the free list after
	// every successful mutation. nil (the default) disables it.
	debugDump io.Writer
}

// New returns an uninitialized RangeAllocator. guardPages and pageSize
// configure AllocateAnywhere's guard-page padding; pageSize is ignored
// when guardPages is false.
func New(guardPages bool, pageSize uint64) *RangeAllocator {
	if guardPages && pageSize == 0 {
		panic("vmrange: pageSize must be nonzero when guardPages is enabled")
	}
	a := &RangeAllocator{guardPages: guardPages, pageSize: pageSize}
	a.lock.Init()
	return a
}

// SetDebugDump directs every successful mutation's post-state to w. A nil w
// disables it. This exists for the same reason the original allocator this
// package is modeled on gates a dump() call behind a debug flag rather than
// printing unconditionally.
func (a *RangeAllocator) SetDebugDump(w io.Writer) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.debugDump = w
}

// InitializeWithRange sets the allocator's total span to [base, base+size)
// and its free list to that span in its entirety.
//
// Preconditions: a has not previously been initialized. size > 0.
func (a *RangeAllocator) InitializeWithRange(base vmaddr.Addr, size uint64) {
	if size == 0 {
		panic("vmrange: InitializeWithRange with size 0")
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	a.checkUninitializedLocked()

	a.total = Range{Base: base, Size: size}
	a.free = newFreeList()
	a.free.insert(a.total)
	a.initialized = true
	a.maybeDumpLocked()
}

// InitializeFromParent copies parent's total span and a snapshot of its
// free list. The two allocators are logically independent afterward:
// mutations on one are never observed by the other.
//
// Preconditions: a has not previously been initialized.
func (a *RangeAllocator) InitializeFromParent(parent *RangeAllocator) {
	parent.lock.Lock()
	total := parent.total
	free := parent.free.clone()
	parent.lock.Unlock()

	a.lock.Lock()
	defer a.lock.Unlock()
	a.checkUninitializedLocked()

	a.total = total
	a.free = free
	a.initialized = true
	a.maybeDumpLocked()
}

func (a *RangeAllocator) checkInitializedLocked() {
	if !a.initialized {
		panic("vmrange: RangeAllocator used before initialization")
	}
}

func (a *RangeAllocator) checkUninitializedLocked() {
	if a.initialized {
		panic("vmrange: RangeAllocator initialized twice")
	}
}

// AllocateAnywhere returns a Range of exactly size bytes, aligned to
// alignment, somewhere within the allocator's total span, or the null
// Range if no free entry can satisfy the request.
//
// Preconditions: alignment is a power of two.
func (a *RangeAllocator) AllocateAnywhere(size, alignment uint64) Range {
	if size == 0 {
		return Range{}
	}
	if !vmaddr.IsPowerOfTwo(alignment) {
		panic(fmt.Sprintf("vmrange: alignment %d is not a power of two", alignment))
	}

	effectiveSize := size
	var offset uint64
	if a.guardPages {
		effectiveSize = size + 2*a.pageSize
		offset = a.pageSize
	}

	a.lock.Lock()
	defer a.lock.Unlock()
	a.checkInitializedLocked()

	candidate, ok := a.free.firstFit(func(c Range) bool {
		// This bound is a conservative upper estimate of the slack a
		// candidate needs: it may reject some satisfiable candidates when
		// alignment is very large. That over-rejection is inherited
		// unchanged from the allocator this package is modeled on and is
		// deliberately preserved rather than tightened.
		return c.Size >= effectiveSize+alignment
	})
	if !ok {
		log.Warningf("vmrange: failed to allocate anywhere(size=%d, alignment=%d)", size, alignment)
		return Range{}
	}

	initial, addOk := candidate.Base.AddLength(offset)
	if !addOk {
		panic(fmt.Sprintf("vmrange: candidate %v overflows with guard offset %d", candidate, offset))
	}
	aligned := vmaddr.AlignUp(initial, alignment)
	allocated := Range{Base: aligned, Size: size}

	if candidate == allocated {
		a.free.remove(candidate)
	} else {
		a.spliceLocked(candidate, allocated)
	}
	a.maybeDumpLocked()
	return allocated
}

// AllocateSpecific returns the Range [base, base+size) if it lies entirely
// within some free entry, or the null Range otherwise. Unlike
// AllocateAnywhere, no guard padding is applied: callers using this path
// are asserting an exact region.
func (a *RangeAllocator) AllocateSpecific(base vmaddr.Addr, size uint64) Range {
	if size == 0 {
		return Range{}
	}
	requested := Range{Base: base, Size: size}

	a.lock.Lock()
	defer a.lock.Unlock()
	a.checkInitializedLocked()

	candidate, ok := a.free.floor(base)
	if !ok || !candidate.ContainsRange(requested) {
		log.Warningf("vmrange: failed to allocate specific range %v", requested)
		return Range{}
	}

	if candidate == requested {
		a.free.remove(candidate)
	} else {
		a.spliceLocked(candidate, requested)
	}
	a.maybeDumpLocked()
	return requested
}

// spliceLocked removes candidate's free entry and re-inserts the residual
// fragments left after taken is carved out of it.
//
// Preconditions: lock is held. candidate.ContainsRange(taken). candidate is
// a current free entry.
func (a *RangeAllocator) spliceLocked(candidate, taken Range) {
	frags := candidate.Carve(taken)
	switch frags.Len() {
	case 0:
		// taken == candidate; callers check this case before calling
		// spliceLocked, but tolerate it here too.
		a.free.remove(candidate)
	case 1:
		a.free.replace(candidate, frags.At(0))
	case 2:
		a.free.remove(candidate)
		a.free.insert(frags.At(0))
		a.free.insert(frags.At(1))
	default:
		panic(fmt.Sprintf("vmrange: carve produced %d fragments", frags.Len()))
	}
}

// Deallocate returns r to the free list, merging it with any
// immediately-adjacent free entries.
//
// Preconditions: a.total.ContainsRange(r). r is not null.
// Violating either preconditions is a programming bug and is fatal: the
// caller has corrupted the allocator's bookkeeping and there is no safe
// way to continue.
func (a *RangeAllocator) Deallocate(r Range) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.checkInitializedLocked()

	if r.IsNull() {
		panic("vmrange: Deallocate of a null range")
	}
	if !a.total.ContainsRange(r) {
		panic(fmt.Sprintf("vmrange: Deallocate of %v, which is not contained in total range %v", r, a.total))
	}

	merged := r
	if left, ok := a.free.floor(r.Base); ok && left.End() == r.Base {
		a.free.remove(left)
		merged = Range{Base: left.Base, Size: left.Size + r.Size}
	}

	if right, ok := a.free.ceiling(merged.End()); ok && right.Base == merged.End() {
		a.free.remove(right)
		merged = Range{Base: merged.Base, Size: merged.Size + right.Size}
	}

	a.free.insert(merged)
	a.maybeDumpLocked()
}

// Total returns the allocator's total span.
func (a *RangeAllocator) Total() Range {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.total
}

// Len returns the number of entries currently in the free list.
func (a *RangeAllocator) Len() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.free.len()
}

// Dump writes one line per free entry to w, in ascending Base order.
func (a *RangeAllocator) Dump(w io.Writer) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.dumpLocked(w)
}

func (a *RangeAllocator) dumpLocked(w io.Writer) {
	fmt.Fprintf(w, "RangeAllocator(%p) total=%v\n", a, a.total)
	for _, r := range a.free.snapshot() {
		fmt.Fprintf(w, "    %v\n", r)
	}
}

func (a *RangeAllocator) maybeDumpLocked() {
	if a.debugDump != nil {
		a.dumpLocked(a.debugDump)
	}
}
