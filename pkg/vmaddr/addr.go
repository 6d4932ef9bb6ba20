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

// Package vmaddr provides Addr, the virtual-address type shared by the
// range allocator, and the small amount of checked arithmetic it needs.
package vmaddr

import "fmt"

// Addr is an opaque virtual address. It is fixed at 64 bits regardless of
// host pointer width so that allocator behavior does not vary by build
// target.
type Addr uint64

// IsZero returns whether a is the zero address.
func (a Addr) IsZero() bool {
	return a == 0
}

// AddLength returns a+n and true, or an unspecified value and false if the
// addition overflows Addr.
func (a Addr) AddLength(n uint64) (Addr, bool) {
	sum := a + Addr(n)
	if sum < a {
		return 0, false
	}
	return sum, true
}

// IsPowerOfTwo returns whether n is a power of two. 0 is not a power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignUp rounds value up to the nearest multiple of alignment.
//
// Preconditions: alignment is a power of two.
func AlignUp(value Addr, alignment uint64) Addr {
	if !IsPowerOfTwo(alignment) {
		panic(fmt.Sprintf("vmaddr: alignment %d is not a power of two", alignment))
	}
	mask := Addr(alignment - 1)
	return (value + mask) &^ mask
}
