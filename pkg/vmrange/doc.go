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

// Package vmrange manages a single contiguous span of virtual address
// space on behalf of a kernel's memory subsystem.
//
// A RangeAllocator owns exactly one total span, set once at
// initialization, and a free list: a sorted, non-overlapping, maximally
// coalesced sequence of Ranges describing the currently unallocated
// portion of that span. Allocation is first-fit only; there is no
// best-fit or worst-fit policy, no defragmentation beyond adjacent
// coalescing on deallocate, and no tracking of range ownership beyond
// address and size.
//
// This package does not back virtual ranges with physical frames, manage
// address-space lifetime, or implement its own logging; those are the
// responsibility of callers.
package vmrange
