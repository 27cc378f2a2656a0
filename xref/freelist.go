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
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// freeHeadGeneration is the generation recorded against object 0, the free
// list's permanent head entry (7.5.4 of ISO 32000-1).
const freeHeadGeneration = 65535

// setNextFree points chain link id (0 meaning head itself) at next,
// writing the change back into t.Entries (or into head, whose caller
// writes it back once the walk finishes).
func (t *Table) setNextFree(id int, head *Entry, next int) {
	if id == 0 {
		head.NextFree = next
		return
	}
	e := t.Entries[id]
	e.NextFree = next
	t.Entries[id] = e
}

func (t *Table) freeObjects() map[int]bool {
	m := map[int]bool{}
	for k, e := range t.Entries {
		if e.Kind == Free && k > 0 {
			m[k] = true
		}
	}
	return m
}

// EnsureValidFreeList repairs object 0's free-list chain so that it links
// every entry recorded as Free exactly once and terminates back at 0,
// fixing whatever a source document's writer left broken rather than
// trusting it blindly (spec invariant 2 needs a walkable chain for
// generation-bump-on-reuse to hold).
func (t *Table) EnsureValidFreeList() error {
	m := t.freeObjects()

	head, ok := t.Entries[0]
	if !ok {
		head = Entry{Kind: Free, NextFree: 0, Generation: freeHeadGeneration}
	}
	if head.Generation != freeHeadGeneration {
		head.Generation = freeHeadGeneration
	}

	if len(m) == 0 {
		head.NextFree = 0
		t.Entries[0] = head
		return nil
	}

	prevID := 0 // the chain link most recently confirmed good; 0 means head
	f := head.NextFree
	for f != 0 {
		if !m[f] {
			// The chain points at an object never recorded as free: either
			// the whole list is corrupted, or this is simply its natural
			// end and the writer forgot to terminate it at 0.
			if len(m) > 0 {
				return errors.Errorf("xref: ensureValidFreeList: free list corrupted at object %d", f)
			}
			t.setNextFree(prevID, &head, 0)
			break
		}
		delete(m, f)
		next := t.Entries[f].NextFree
		prevID = f
		f = next
	}
	t.Entries[0] = head

	if len(m) == 0 {
		return nil
	}

	// Link whatever free objects the walk above didn't reach back into the
	// chain, unless they carry the "permanently deleted" generation, in
	// which case they point straight at object 0.
	for i := range m {
		e, ok := t.Entries[i]
		if !ok || e.Kind != Free {
			return errors.Errorf("xref: ensureValidFreeList: no free entry for object %d", i)
		}
		if e.Generation == freeHeadGeneration {
			e.NextFree = 0
			t.Entries[i] = e
			continue
		}
		e.NextFree = head.NextFree
		t.Entries[i] = e
		head.NextFree = i
	}
	t.Entries[0] = head
	return nil
}

// MissingObjects returns the number of object numbers below Size that have
// no entry at all, plus a comma-separated listing, surfaced as a
// diagnostic rather than a hard failure — a dangling reference is a
// document defect, not necessarily one that blocks reading the rest.
func (t *Table) MissingObjects() (int, string) {
	var missing []string
	for i := 0; i < t.Size; i++ {
		if !t.Exists(i) {
			missing = append(missing, fmt.Sprintf("%d", i))
		}
	}
	return len(missing), strings.Join(missing, ",")
}
