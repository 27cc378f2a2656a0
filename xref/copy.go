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
	"github.com/feliwir/pdfcore/types"
)

// CopyContext copies an object graph from one Table into another, remapping
// object numbers so a source id never collides with one already allocated
// in the destination (spec §4.J "Copying"). A single CopyContext instance
// must be reused across every object copied as part of one logical merge,
// so a source object referenced from multiple places lands on exactly one
// destination id.
type CopyContext struct {
	src  *Table
	dest *Table

	// nextID is the next unused object number in the destination table.
	nextID int

	// lookup maps a source object number to the destination id it was
	// assigned the first time it was copied.
	lookup map[int]int
}

// NewCopyContext prepares to copy objects from src into dest, allocating new
// object numbers starting immediately after dest's current highest one.
func NewCopyContext(src, dest *Table) *CopyContext {
	next := 1
	for id := range dest.Entries {
		if id >= next {
			next = id + 1
		}
	}
	return &CopyContext{
		src:    src,
		dest:   dest,
		nextID: next,
		lookup: map[int]int{},
	}
}

// mapID returns the destination object number srcID has been (or is about
// to be) assigned, allocating a fresh one on first use.
func (c *CopyContext) mapID(srcID int) int {
	if id, ok := c.lookup[srcID]; ok {
		return id
	}
	id := c.nextID
	c.nextID++
	c.lookup[srcID] = id
	return id
}

// CopyDirectObjectAsIs deep-copies obj without resolving or remapping any
// indirect references it contains — used for values known to contain no
// indirect references worth following (e.g. already-direct leaf values).
func CopyDirectObjectAsIs(obj types.Object) types.Object {
	switch o := obj.(type) {
	case types.Dict:
		return o.Clone()
	case types.Array:
		return o.Clone()
	case types.StreamDict:
		return types.NewStreamDict(o.Dict.Clone().(types.Dict), append([]byte(nil), o.Raw...))
	default:
		return obj
	}
}

// CopyDirectObject deep-copies obj, resolving and recursively copying every
// IndirectRef it contains into c's destination table, and returns the
// (possibly remapped) copy. Direct values are copied as-is; an IndirectRef
// is replaced with a new IndirectRef pointing at its copy's destination id.
func (c *CopyContext) CopyDirectObject(obj types.Object) (types.Object, error) {
	switch o := obj.(type) {

	case types.IndirectRef:
		destID, err := c.CopyNewObject(o.ObjectNumber)
		if err != nil {
			return nil, err
		}
		return types.NewIndirectRef(destID, 0), nil

	case types.Dict:
		out := make(types.Dict, len(o))
		for k, v := range o {
			cv, err := c.CopyDirectObject(v)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil

	case types.Array:
		out := make(types.Array, len(o))
		for i, v := range o {
			cv, err := c.CopyDirectObject(v)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil

	case types.StreamDict:
		dcopy, err := c.CopyDirectObject(o.Dict)
		if err != nil {
			return nil, err
		}
		return types.NewStreamDict(dcopy.(types.Dict), append([]byte(nil), o.Raw...)), nil

	default:
		return obj, nil
	}
}

// CopyNewObject resolves srcID in the source table, copies its object graph
// into the destination table under a freshly allocated (or previously
// assigned, if already copied) object number, and returns that number. A
// source object is copied at most once per CopyContext even if referenced
// from multiple places.
func (c *CopyContext) CopyNewObject(srcID int) (int, error) {
	destID, alreadyMapped := c.lookup[srcID]
	if alreadyMapped {
		if _, exists := c.dest.Entries[destID]; exists {
			return destID, nil
		}
	} else {
		destID = c.mapID(srcID)
	}

	// Reserve the slot before recursing so a cycle back to srcID resolves
	// to the same destID instead of recursing forever.
	c.dest.Entries[destID] = Entry{Kind: InUse, Offset: 0, Generation: 0}

	obj, err := c.src.Resolve(srcID)
	if err != nil {
		return 0, err
	}
	copied, err := c.CopyDirectObject(obj)
	if err != nil {
		return 0, err
	}

	c.dest.putDirect(destID, copied)
	return destID, nil
}

// DestinationIDs returns every destination object number this CopyContext
// has allocated so far, in no particular order — used by a caller that needs
// to mark each one dirty for an incremental save.
func (c *CopyContext) DestinationIDs() []int {
	ids := make([]int, 0, len(c.lookup))
	for _, id := range c.lookup {
		ids = append(ids, id)
	}
	return ids
}

// NewObjectNumber allocates a fresh, never-before-used object number in t.
func (t *Table) NewObjectNumber() int {
	id := t.Size
	if id == 0 {
		id = 1
	}
	for {
		if _, exists := t.Entries[id]; !exists {
			break
		}
		id++
	}
	if id >= t.Size {
		t.Size = id + 1
	}
	return id
}

// PutObject registers obj as an in-memory object under id, for callers that
// construct new objects programmatically (the model package's document and
// page builders) rather than parsing them from a source stream.
func (t *Table) PutObject(id int, obj types.Object) {
	t.putDirect(id, obj)
}

// putDirect registers obj as an in-memory (not file-backed) object under id,
// for use by callers — such as CopyContext — that construct new objects
// programmatically rather than parsing them from a source stream. The write
// package consults this side table when an Entry has no corresponding bytes
// on disk.
func (t *Table) putDirect(id int, obj types.Object) {
	if t.direct == nil {
		t.direct = map[int]types.Object{}
	}
	t.direct[id] = obj
	t.Entries[id] = Entry{Kind: InUse, Offset: 0, Generation: 0}
}
