/*
Copyright 2024 The pdfcore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package xref

import (
	"testing"

	"github.com/feliwir/pdfcore/internal/diag"
)

func newEmptyTable() *Table {
	return New(nil, 0, diag.Nop{})
}

func TestEnsureValidFreeListBuildsHeadWhenAbsent(t *testing.T) {
	tbl := newEmptyTable()
	tbl.Entries[3] = Entry{Kind: Free, NextFree: 0, Generation: 0}

	if err := tbl.EnsureValidFreeList(); err != nil {
		t.Fatalf("EnsureValidFreeList: %v", err)
	}

	head := tbl.Entries[0]
	if head.Generation != freeHeadGeneration {
		t.Fatalf("head generation = %d, want %d", head.Generation, freeHeadGeneration)
	}
	if head.NextFree != 3 {
		t.Fatalf("head.NextFree = %d, want 3", head.NextFree)
	}
	if tbl.Entries[3].NextFree != 0 {
		t.Fatalf("object 3 should terminate the chain at 0, got %d", tbl.Entries[3].NextFree)
	}
}

func TestEnsureValidFreeListAcceptsRegularChain(t *testing.T) {
	tbl := newEmptyTable()
	tbl.Entries[0] = Entry{Kind: Free, NextFree: 3, Generation: freeHeadGeneration}
	tbl.Entries[3] = Entry{Kind: Free, NextFree: 5, Generation: 0}
	tbl.Entries[5] = Entry{Kind: Free, NextFree: 0, Generation: 0}

	if err := tbl.EnsureValidFreeList(); err != nil {
		t.Fatalf("EnsureValidFreeList: %v", err)
	}
	if tbl.Entries[0].NextFree != 3 || tbl.Entries[3].NextFree != 5 || tbl.Entries[5].NextFree != 0 {
		t.Fatalf("a valid chain should be left untouched: %+v", tbl.Entries)
	}
}

func TestEnsureValidFreeListRelinksDanglingFreeObject(t *testing.T) {
	tbl := newEmptyTable()
	// Object 7 is marked free but never actually linked into the chain
	// rooted at 0 — a common corruption this repair exists for.
	tbl.Entries[0] = Entry{Kind: Free, NextFree: 0, Generation: freeHeadGeneration}
	tbl.Entries[7] = Entry{Kind: Free, NextFree: 0, Generation: 0}

	if err := tbl.EnsureValidFreeList(); err != nil {
		t.Fatalf("EnsureValidFreeList: %v", err)
	}
	if tbl.Entries[0].NextFree != 7 {
		t.Fatalf("head should now point at the relinked object 7, got %d", tbl.Entries[0].NextFree)
	}
	if tbl.Entries[7].NextFree != 0 {
		t.Fatalf("object 7 should terminate the chain at 0, got %d", tbl.Entries[7].NextFree)
	}
}

func TestEnsureValidFreeListDetectsCorruption(t *testing.T) {
	tbl := newEmptyTable()
	// The head points at object 9, which is in use, not free: the chain
	// itself is corrupt, and there's still an untouched free object (3)
	// left over, so this isn't just a missing terminator.
	tbl.Entries[0] = Entry{Kind: Free, NextFree: 9, Generation: freeHeadGeneration}
	tbl.Entries[9] = Entry{Kind: InUse, Offset: 100, Generation: 0}
	tbl.Entries[3] = Entry{Kind: Free, NextFree: 0, Generation: 0}

	if err := tbl.EnsureValidFreeList(); err == nil {
		t.Fatalf("expected an error for a free list pointing at a non-free object")
	}
}

func TestMissingObjectsReportsGaps(t *testing.T) {
	tbl := newEmptyTable()
	tbl.Size = 4
	tbl.Entries[0] = Entry{Kind: Free}
	tbl.Entries[1] = Entry{Kind: InUse, Offset: 10}
	// object 2 is missing entirely
	tbl.Entries[3] = Entry{Kind: InUse, Offset: 30}

	n, list := tbl.MissingObjects()
	if n != 1 {
		t.Fatalf("MissingObjects count = %d, want 1", n)
	}
	if list != "2" {
		t.Fatalf("MissingObjects list = %q, want %q", list, "2")
	}
}
