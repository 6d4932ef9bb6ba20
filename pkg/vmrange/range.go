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

	"github.com/Camisul/serenity/pkg/vmaddr"
)

// Range is a half-open interval [Base, Base+Size) of virtual address space.
//
// The zero Range (Size == 0) is the sentinel "null" range returned to
// signal allocation failure. Range is a pure value type: it has no
// identity, and every method is a pure function of its receiver and
// arguments.
type Range struct {
	Base vmaddr.Addr
	Size uint64
}

// IsNull returns whether r is the sentinel null range.
func (r Range) IsNull() bool {
	return r.Size == 0
}

// End returns the exclusive end of r.
//
// Preconditions: r is not null.
func (r Range) End() vmaddr.Addr {
	end, ok := r.Base.AddLength(r.Size)
	if !ok {
		panic(fmt.Sprintf("vmrange: range %v overflows address space", r))
	}
	return end
}

// Contains returns whether the interval [addr, addr+n) lies entirely
// within r.
func (r Range) Contains(addr vmaddr.Addr, n uint64) bool {
	if n == 0 {
		return false
	}
	end, ok := addr.AddLength(n)
	if !ok {
		return false
	}
	return addr >= r.Base && end <= r.End()
}

// ContainsRange returns whether other lies entirely within r.
func (r Range) ContainsRange(other Range) bool {
	if other.IsNull() {
		return false
	}
	return r.Contains(other.Base, other.Size)
}

// String implements fmt.Stringer.
func (r Range) String() string {
	if r.IsNull() {
		return "[null]"
	}
	return fmt.Sprintf("[%#x, %#x)", uint64(r.Base), uint64(r.End()))
}

// Fragments holds the 0, 1, or 2 residual ranges produced by Carve, stored
// inline to avoid a heap allocation on the allocator's hot path.
type Fragments struct {
	arr [2]Range
	n   int
}

// Len returns the number of residual fragments.
func (f Fragments) Len() int {
	return f.n
}

// At returns the i'th residual fragment, in left-to-right order.
func (f Fragments) At(i int) Range {
	if i < 0 || i >= f.n {
		panic(fmt.Sprintf("vmrange: fragment index %d out of range (len %d)", i, f.n))
	}
	return f.arr[i]
}

// Carve subtracts taken from r, returning the residual fragments: empty if
// taken == r, one fragment if only a left or right remainder survives, or
// two fragments (left, then right) if taken is strictly interior to r.
//
// Preconditions: r.ContainsRange(taken). taken is not null.
func (r Range) Carve(taken Range) Fragments {
	if taken.IsNull() {
		panic("vmrange: Carve of a null range")
	}
	if !r.ContainsRange(taken) {
		panic(fmt.Sprintf("vmrange: %v does not contain %v", r, taken))
	}
	var f Fragments
	if taken.Base > r.Base {
		f.arr[f.n] = Range{Base: r.Base, Size: uint64(taken.Base - r.Base)}
		f.n++
	}
	if taken.End() < r.End() {
		f.arr[f.n] = Range{Base: taken.End(), Size: uint64(r.End() - taken.End())}
		f.n++
	}
	return f
}
