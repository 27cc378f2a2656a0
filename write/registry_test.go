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

package write

import "testing"

func TestRegistryAllocateAssignsAscendingIDs(t *testing.T) {
	r := NewRegistry(1)
	a := r.Allocate()
	b := r.Allocate()
	if a != 1 || b != 2 {
		t.Fatalf("Allocate sequence = %d, %d, want 1, 2", a, b)
	}
	if r.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", r.Size())
	}
}

func TestRegistryGenerationBumpsOnReuse(t *testing.T) {
	r := NewRegistry(1)
	r.MarkFree(7, 0)
	r.RecordWritten(7, 100)

	slot, ok := r.Slot(7)
	if !ok {
		t.Fatalf("Slot(7) missing")
	}
	if slot.Status != StatusWritten {
		t.Fatalf("Status = %v, want StatusWritten", slot.Status)
	}
	if slot.Generation != 1 {
		t.Fatalf("Generation = %d, want 1 (bumped on reuse)", slot.Generation)
	}
	if slot.RecordedOffset != 100 {
		t.Fatalf("RecordedOffset = %d, want 100", slot.RecordedOffset)
	}
}

func TestRegistryRecordWrittenWithoutPriorFreeKeepsGeneration(t *testing.T) {
	r := NewRegistry(1)
	id := r.Allocate()
	r.RecordWritten(id, 50)

	slot, _ := r.Slot(id)
	if slot.Generation != 0 {
		t.Fatalf("Generation = %d, want 0 (never freed)", slot.Generation)
	}
}

func TestRegistryIDsSortedAscending(t *testing.T) {
	r := NewRegistry(1)
	r.MarkDirty(9, 0)
	r.MarkDirty(2, 0)
	r.MarkDirty(5, 0)

	ids := r.IDs()
	want := []int{2, 5, 9}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("IDs() = %v, want %v", ids, want)
		}
	}
}
