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
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Camisul/serenity/pkg/vmaddr"
)

func TestFreeListInsertOrdering(t *testing.T) {
	fl := newFreeList()
	fl.insert(Range{Base: 0x3000, Size: 0x1000})
	fl.insert(Range{Base: 0x1000, Size: 0x1000})
	fl.insert(Range{Base: 0x5000, Size: 0x1000})

	want := []Range{
		{Base: 0x1000, Size: 0x1000},
		{Base: 0x3000, Size: 0x1000},
		{Base: 0x5000, Size: 0x1000},
	}
	if diff := cmp.Diff(want, fl.snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestFreeListFirstFit(t *testing.T) {
	fl := newFreeList()
	fl.insert(Range{Base: 0x1000, Size: 0x1000})
	fl.insert(Range{Base: 0x5000, Size: 0x4000})
	fl.insert(Range{Base: 0x3000, Size: 0x1000})

	got, ok := fl.firstFit(func(r Range) bool { return r.Size >= 0x1000 })
	if !ok {
		t.Fatal("firstFit found nothing")
	}
	// Ascending base order: 0x1000 satisfies size >= 0x1000 first.
	if want := (Range{Base: 0x1000, Size: 0x1000}); got != want {
		t.Errorf("firstFit = %v, want %v", got, want)
	}

	got, ok = fl.firstFit(func(r Range) bool { return r.Size >= 0x2000 })
	if !ok {
		t.Fatal("firstFit found nothing for a 0x2000 predicate")
	}
	if want := (Range{Base: 0x5000, Size: 0x4000}); got != want {
		t.Errorf("firstFit = %v, want %v", got, want)
	}

	if _, ok := fl.firstFit(func(r Range) bool { return r.Size >= 0x10000 }); ok {
		t.Error("firstFit reported a match when none should exist")
	}
}

func TestFreeListFloorAndCeiling(t *testing.T) {
	fl := newFreeList()
	fl.insert(Range{Base: 0x1000, Size: 0x1000})
	fl.insert(Range{Base: 0x5000, Size: 0x1000})

	if got, ok := fl.floor(0x1500); !ok || got.Base != 0x1000 {
		t.Errorf("floor(0x1500) = (%v, %v), want (Base=0x1000, true)", got, ok)
	}
	if _, ok := fl.floor(0x0500); ok {
		t.Error("floor(0x0500) found an entry when none precedes it")
	}
	if got, ok := fl.ceiling(0x1500); !ok || got.Base != 0x5000 {
		t.Errorf("ceiling(0x1500) = (%v, %v), want (Base=0x5000, true)", got, ok)
	}
	if _, ok := fl.ceiling(0x6000); ok {
		t.Error("ceiling(0x6000) found an entry when none follows it")
	}
}

func TestFreeListCloneIsIndependent(t *testing.T) {
	fl := newFreeList()
	fl.insert(Range{Base: 0x1000, Size: 0x1000})

	clone := fl.clone()
	clone.insert(Range{Base: 0x5000, Size: 0x1000})
	clone.remove(Range{Base: 0x1000})

	if fl.len() != 1 {
		t.Errorf("original freeList mutated by clone: len = %d, want 1", fl.len())
	}
	if clone.len() != 1 {
		t.Errorf("clone len = %d, want 1", clone.len())
	}
	if got := clone.snapshot()[0].Base; got != 0x5000 {
		t.Errorf("clone snapshot[0].Base = %#x, want 0x5000", uint64(got))
	}
}

func TestFreeListReplace(t *testing.T) {
	fl := newFreeList()
	fl.insert(Range{Base: 0x1000, Size: 0x1000})
	fl.replace(Range{Base: 0x1000}, Range{Base: 0x1000, Size: 0x800})

	got, ok := fl.floor(vmaddr.Addr(0x1000))
	if !ok || got.Size != 0x800 {
		t.Errorf("after replace, floor(0x1000) = (%v, %v), want (Size=0x800, true)", got, ok)
	}
}
