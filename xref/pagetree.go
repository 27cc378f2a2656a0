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
	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/types"
)

// InheritedPageAttrs is the result of walking the page tree down to one leaf
// page dict, carrying forward any /Resources, /MediaBox, /CropBox and
// /Rotate a page itself omits (spec §4.F "Page tree").
type InheritedPageAttrs struct {
	Resources types.Dict
	MediaBox  types.Array
	CropBox   types.Array
	Rotate    int
}

// PageCount dereferences /Root -> /Pages and returns its /Count.
func (t *Table) PageCount() (int, error) {
	root, err := t.catalog()
	if err != nil {
		return 0, err
	}
	pagesRef, ok := root["Pages"]
	if !ok {
		return 0, errors.Wrap(errs.ErrCorruptXref, "xref: catalog has no /Pages")
	}
	pagesObj, err := t.Dereference(pagesRef)
	if err != nil {
		return 0, err
	}
	pages, ok := pagesObj.(types.Dict)
	if !ok {
		return 0, errors.Wrap(errs.ErrTypeMismatch, "xref: /Pages is not a dictionary")
	}
	n, err := dictInt(pages, "Count")
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Table) catalog() (types.Dict, error) {
	rootRef, ok := t.Trailer["Root"]
	if !ok {
		return nil, errors.Wrap(errs.ErrCorruptXref, "xref: trailer has no /Root")
	}
	rootObj, err := t.Dereference(rootRef)
	if err != nil {
		return nil, err
	}
	d, ok := rootObj.(types.Dict)
	if !ok {
		return nil, errors.Wrap(errs.ErrTypeMismatch, "xref: /Root is not a dictionary")
	}
	return d, nil
}

// Page returns the pageNr'th (1-based) leaf page dictionary along with the
// attributes it inherits from its ancestors in the page tree.
func (t *Table) Page(pageNr int) (types.Dict, InheritedPageAttrs, error) {
	if pageNr < 1 {
		return nil, InheritedPageAttrs{}, errors.Wrapf(errs.ErrTypeMismatch, "xref: page number must be >= 1, got %d", pageNr)
	}

	root, err := t.catalog()
	if err != nil {
		return nil, InheritedPageAttrs{}, err
	}
	pagesRef, ok := root["Pages"]
	if !ok {
		return nil, InheritedPageAttrs{}, errors.Wrap(errs.ErrCorruptXref, "xref: catalog has no /Pages")
	}

	seen := map[int]bool{}
	counter := 0
	d, attrs, err := t.walkPageTree(pagesRef, InheritedPageAttrs{}, &counter, pageNr, seen)
	if err != nil {
		return nil, InheritedPageAttrs{}, err
	}
	if d == nil {
		return nil, InheritedPageAttrs{}, errors.Wrapf(errs.ErrTypeMismatch, "xref: page %d not found", pageNr)
	}
	return d, attrs, nil
}

// walkPageTree descends the /Kids tree in document order, accumulating
// inherited attributes at each node, stopping at the pageNr'th leaf it
// encounters. counter tracks how many leaves have been visited so far.
func (t *Table) walkPageTree(nodeRef types.Object, inherited InheritedPageAttrs, counter *int, pageNr int, seen map[int]bool) (types.Dict, InheritedPageAttrs, error) {
	if ref, ok := nodeRef.(types.IndirectRef); ok {
		if seen[ref.ObjectNumber] {
			return nil, InheritedPageAttrs{}, errors.Wrap(errs.ErrCorruptXref, "xref: page tree cycle detected")
		}
		seen[ref.ObjectNumber] = true
	}

	node, err := t.Dereference(nodeRef)
	if err != nil {
		return nil, InheritedPageAttrs{}, err
	}
	d, ok := node.(types.Dict)
	if !ok {
		return nil, InheritedPageAttrs{}, errors.Wrap(errs.ErrTypeMismatch, "xref: page tree node is not a dictionary")
	}

	attrs, err := t.mergeInheritedAttrs(d, inherited)
	if err != nil {
		return nil, InheritedPageAttrs{}, err
	}

	typ, _ := d.NameEntry("Type")
	if string(typ) == "Page" {
		*counter++
		if *counter == pageNr {
			return d, attrs, nil
		}
		return nil, InheritedPageAttrs{}, nil
	}

	kidsObj, ok := d["Kids"]
	if !ok {
		return nil, InheritedPageAttrs{}, errors.Wrap(errs.ErrCorruptXref, "xref: page tree intermediate node has no /Kids")
	}
	kidsAny, err := t.Dereference(kidsObj)
	if err != nil {
		return nil, InheritedPageAttrs{}, err
	}
	kids, ok := kidsAny.(types.Array)
	if !ok {
		return nil, InheritedPageAttrs{}, errors.Wrap(errs.ErrTypeMismatch, "xref: /Kids is not an array")
	}

	for _, kid := range kids {
		found, foundAttrs, err := t.walkPageTree(kid, attrs, counter, pageNr, seen)
		if err != nil {
			return nil, InheritedPageAttrs{}, err
		}
		if found != nil {
			return found, foundAttrs, nil
		}
	}
	return nil, InheritedPageAttrs{}, nil
}

// mergeInheritedAttrs overlays any /Resources, /MediaBox, /CropBox and
// /Rotate present on d onto the attrs already inherited from its ancestors,
// following the PDF page-tree inheritance rule that a node's own value
// always overrides its parent's (spec §4.F).
func (t *Table) mergeInheritedAttrs(d types.Dict, inherited InheritedPageAttrs) (InheritedPageAttrs, error) {
	attrs := inherited

	if obj, ok := d["MediaBox"]; ok {
		a, err := t.dereferenceArray(obj)
		if err != nil {
			return attrs, err
		}
		attrs.MediaBox = a
	}
	if obj, ok := d["CropBox"]; ok {
		a, err := t.dereferenceArray(obj)
		if err != nil {
			return attrs, err
		}
		attrs.CropBox = a
	}
	if obj, ok := d["Rotate"]; ok {
		r, err := t.Dereference(obj)
		if err != nil {
			return attrs, err
		}
		if i, ok := r.(types.Integer); ok {
			attrs.Rotate = int(i)
		}
	}
	if obj, ok := d["Resources"]; ok {
		r, err := t.Dereference(obj)
		if err != nil {
			return attrs, err
		}
		if rd, ok := r.(types.Dict); ok {
			attrs.Resources = rd
		}
	}

	return attrs, nil
}

// PageRef returns the indirect reference to the pageNr'th (1-based) leaf
// page node itself, for a caller that needs to mutate the page dictionary in
// place (e.g. adding an annotation) rather than just read its contents.
// found is false if the page tree has fewer than pageNr pages.
func (t *Table) PageRef(pageNr int) (ref types.IndirectRef, found bool, err error) {
	if pageNr < 1 {
		return types.IndirectRef{}, false, errors.Wrapf(errs.ErrTypeMismatch, "xref: page number must be >= 1, got %d", pageNr)
	}

	root, err := t.catalog()
	if err != nil {
		return types.IndirectRef{}, false, err
	}
	pagesRef, ok := root["Pages"]
	if !ok {
		return types.IndirectRef{}, false, errors.Wrap(errs.ErrCorruptXref, "xref: catalog has no /Pages")
	}

	seen := map[int]bool{}
	counter := 0
	return t.walkPageTreeRefs(pagesRef, &counter, pageNr, seen)
}

func (t *Table) walkPageTreeRefs(nodeRef types.Object, counter *int, pageNr int, seen map[int]bool) (types.IndirectRef, bool, error) {
	ref, isRef := nodeRef.(types.IndirectRef)
	if isRef {
		if seen[ref.ObjectNumber] {
			return types.IndirectRef{}, false, errors.Wrap(errs.ErrCorruptXref, "xref: page tree cycle detected")
		}
		seen[ref.ObjectNumber] = true
	}

	node, err := t.Dereference(nodeRef)
	if err != nil {
		return types.IndirectRef{}, false, err
	}
	d, ok := node.(types.Dict)
	if !ok {
		return types.IndirectRef{}, false, errors.Wrap(errs.ErrTypeMismatch, "xref: page tree node is not a dictionary")
	}

	typ, _ := d.NameEntry("Type")
	if string(typ) == "Page" {
		*counter++
		if *counter == pageNr {
			if !isRef {
				return types.IndirectRef{}, false, errors.Wrap(errs.ErrTypeMismatch, "xref: page tree leaf has no object identity")
			}
			return ref, true, nil
		}
		return types.IndirectRef{}, false, nil
	}

	kidsObj, ok := d["Kids"]
	if !ok {
		return types.IndirectRef{}, false, errors.Wrap(errs.ErrCorruptXref, "xref: page tree intermediate node has no /Kids")
	}
	kidsAny, err := t.Dereference(kidsObj)
	if err != nil {
		return types.IndirectRef{}, false, err
	}
	kids, ok := kidsAny.(types.Array)
	if !ok {
		return types.IndirectRef{}, false, errors.Wrap(errs.ErrTypeMismatch, "xref: /Kids is not an array")
	}

	for _, kid := range kids {
		found, ok, err := t.walkPageTreeRefs(kid, counter, pageNr, seen)
		if err != nil {
			return types.IndirectRef{}, false, err
		}
		if ok {
			return found, true, nil
		}
	}
	return types.IndirectRef{}, false, nil
}

func (t *Table) dereferenceArray(obj types.Object) (types.Array, error) {
	resolved, err := t.Dereference(obj)
	if err != nil {
		return nil, err
	}
	a, ok := resolved.(types.Array)
	if !ok {
		return nil, errors.Wrap(errs.ErrTypeMismatch, "xref: expected an array")
	}
	return a, nil
}
