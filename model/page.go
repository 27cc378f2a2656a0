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

package model

import (
	"github.com/pkg/errors"

	"github.com/feliwir/pdfcore/errs"
	"github.com/feliwir/pdfcore/types"
	"github.com/feliwir/pdfcore/xref"
)

// PageCount returns the document's /Pages /Count.
func (c *Context) PageCount() (int, error) {
	return c.Table.PageCount()
}

// Page returns the i-th (0-based, per spec §4.F "parsePage(i)") page
// dictionary along with the attributes it inherits from ancestor page-tree
// nodes. Inheritance is never applied to the returned dictionary itself.
func (c *Context) Page(i int) (types.Dict, xref.InheritedPageAttrs, error) {
	return c.Table.Page(i + 1)
}

func (c *Context) rootDict() (types.Dict, error) {
	rootObj, ok := c.Table.Trailer["Root"]
	if !ok {
		return nil, errors.Wrap(errs.ErrCorruptXref, "model: trailer has no /Root")
	}
	resolved, err := c.Table.Dereference(rootObj)
	if err != nil {
		return nil, err
	}
	d, ok := resolved.(types.Dict)
	if !ok {
		return nil, errors.Wrap(errs.ErrTypeMismatch, "model: /Root is not a dictionary")
	}
	return d, nil
}

// AddPage appends a new page with the given /MediaBox to the end of the
// document's page tree and returns its object number.
func (c *Context) AddPage(mediaBox types.Array) (int, error) {
	root, err := c.rootDict()
	if err != nil {
		return 0, err
	}
	pagesRef, ok := root["Pages"].(types.IndirectRef)
	if !ok {
		return 0, errors.Wrap(errs.ErrTypeMismatch, "model: /Pages is not an indirect reference")
	}

	pagesObj, err := c.Table.Resolve(pagesRef.ObjectNumber)
	if err != nil {
		return 0, err
	}
	pagesDict, ok := pagesObj.(types.Dict)
	if !ok {
		return 0, errors.Wrap(errs.ErrTypeMismatch, "model: /Pages is not a dictionary")
	}
	pagesDict = pagesDict.Clone().(types.Dict)

	pageID := c.Table.NewObjectNumber()
	c.Table.PutObject(pageID, types.Dict{
		"Type":     types.Name("Page"),
		"Parent":   pagesRef,
		"MediaBox": mediaBox,
	})

	kids, _ := pagesDict["Kids"].(types.Array)
	pagesDict["Kids"] = append(append(types.Array(nil), kids...), types.NewIndirectRef(pageID, 0))

	count := 0
	if n, ok := pagesDict["Count"].(types.Integer); ok {
		count = int(n)
	}
	pagesDict["Count"] = types.Integer(count + 1)

	c.Table.PutObject(pagesRef.ObjectNumber, pagesDict)
	c.MarkDirty(pageID)
	c.MarkDirty(pagesRef.ObjectNumber)
	return pageID, nil
}

// AddAnnotation appends a /Subtype subtype annotation with the given /Rect
// to the i-th (0-based) page's /Annots array, allocating a fresh object
// number for the annotation dictionary, and returns that object number.
func (c *Context) AddAnnotation(i int, subtype string, rect types.Array) (int, error) {
	pageRef, found, err := c.Table.PageRef(i + 1)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Errorf("model: page %d not found", i)
	}

	pageObj, err := c.Table.Resolve(pageRef.ObjectNumber)
	if err != nil {
		return 0, err
	}
	pageDict, ok := pageObj.(types.Dict)
	if !ok {
		return 0, errors.Wrap(errs.ErrTypeMismatch, "model: page object is not a dictionary")
	}
	pageDict = pageDict.Clone().(types.Dict)

	annotID := c.Table.NewObjectNumber()
	c.Table.PutObject(annotID, types.Dict{
		"Type":    types.Name("Annot"),
		"Subtype": types.Name(subtype),
		"Rect":    rect,
	})

	annots, err := c.resolveAnnots(pageDict)
	if err != nil {
		return 0, err
	}
	pageDict["Annots"] = append(annots, types.NewIndirectRef(annotID, 0))

	c.Table.PutObject(pageRef.ObjectNumber, pageDict)
	c.MarkDirty(annotID)
	c.MarkDirty(pageRef.ObjectNumber)
	return annotID, nil
}

// ImportPage deep-copies the srcNr-th (0-based) page of src — its own
// dictionary plus the full object graph it references (Resources, Contents,
// Annots, ...) — into c, appending it to c's page tree, and returns its new
// object number (spec §4.J "Copying context"). /Parent is not followed: the
// copy is re-parented onto c's own /Pages node rather than pulling in src's
// entire page tree.
func (c *Context) ImportPage(src *Context, srcNr int) (int, error) {
	root, err := c.rootDict()
	if err != nil {
		return 0, err
	}
	pagesRef, ok := root["Pages"].(types.IndirectRef)
	if !ok {
		return 0, errors.Wrap(errs.ErrTypeMismatch, "model: /Pages is not an indirect reference")
	}
	pagesObj, err := c.Table.Resolve(pagesRef.ObjectNumber)
	if err != nil {
		return 0, err
	}
	pagesDict, ok := pagesObj.(types.Dict)
	if !ok {
		return 0, errors.Wrap(errs.ErrTypeMismatch, "model: /Pages is not a dictionary")
	}
	pagesDict = pagesDict.Clone().(types.Dict)

	srcPageRef, found, err := src.Table.PageRef(srcNr + 1)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Errorf("model: source page %d not found", srcNr)
	}
	srcPageObj, err := src.Table.Resolve(srcPageRef.ObjectNumber)
	if err != nil {
		return 0, err
	}
	srcPageDict, ok := srcPageObj.(types.Dict)
	if !ok {
		return 0, errors.Wrap(errs.ErrTypeMismatch, "model: source page object is not a dictionary")
	}
	sanitized := srcPageDict.Clone().(types.Dict)
	delete(sanitized, "Parent")

	cc := xref.NewCopyContext(src.Table, c.Table)
	copiedObj, err := cc.CopyDirectObject(sanitized)
	if err != nil {
		return 0, err
	}
	copiedDict := copiedObj.(types.Dict)
	copiedDict["Parent"] = pagesRef

	pageID := c.Table.NewObjectNumber()
	c.Table.PutObject(pageID, copiedDict)

	kids, _ := pagesDict["Kids"].(types.Array)
	pagesDict["Kids"] = append(append(types.Array(nil), kids...), types.NewIndirectRef(pageID, 0))

	count := 0
	if n, ok := pagesDict["Count"].(types.Integer); ok {
		count = int(n)
	}
	pagesDict["Count"] = types.Integer(count + 1)

	c.Table.PutObject(pagesRef.ObjectNumber, pagesDict)
	c.MarkDirty(pageID)
	c.MarkDirty(pagesRef.ObjectNumber)
	for _, id := range cc.DestinationIDs() {
		c.MarkDirty(id)
	}
	return pageID, nil
}

// AppendPageContent joins a new content stream onto the end of the i-th
// (0-based) page's existing /Contents, rather than replacing it, and returns
// the new stream's object number. A page's content may already be a single
// stream or an array of streams concatenated in order (PDF 32000-1 7.8.2);
// either way the existing entries are kept and the new one is appended last,
// so draw order is preserved. Only the new stream and the page dictionary
// itself are marked dirty, letting SaveIncremental touch nothing else.
func (c *Context) AppendPageContent(i int, raw []byte) (int, error) {
	pageRef, found, err := c.Table.PageRef(i + 1)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, errors.Errorf("model: page %d not found", i)
	}
	pageObj, err := c.Table.Resolve(pageRef.ObjectNumber)
	if err != nil {
		return 0, err
	}
	pageDict, ok := pageObj.(types.Dict)
	if !ok {
		return 0, errors.Wrap(errs.ErrTypeMismatch, "model: page object is not a dictionary")
	}
	pageDict = pageDict.Clone().(types.Dict)

	existing, err := c.resolveContents(pageDict)
	if err != nil {
		return 0, err
	}

	contentID := c.Table.NewObjectNumber()
	c.Table.PutObject(contentID, types.NewStreamDict(types.Dict{}, append([]byte(nil), raw...)))
	pageDict["Contents"] = append(existing, types.NewIndirectRef(contentID, 0))

	c.Table.PutObject(pageRef.ObjectNumber, pageDict)
	c.MarkDirty(contentID)
	c.MarkDirty(pageRef.ObjectNumber)
	return contentID, nil
}

// resolveContents normalises pageDict's current /Contents to an array of
// references, whether the page had none yet, a single indirect stream
// reference, or an existing array.
func (c *Context) resolveContents(pageDict types.Dict) (types.Array, error) {
	obj, ok := pageDict["Contents"]
	if !ok {
		return nil, nil
	}
	switch v := obj.(type) {
	case types.Array:
		return append(types.Array(nil), v...), nil
	case types.IndirectRef:
		return types.Array{v}, nil
	default:
		return nil, errors.Wrap(errs.ErrTypeMismatch, "model: /Contents has unexpected type")
	}
}

// resolveAnnots returns pageDict's current /Annots array (direct or
// indirect), or nil if it has none yet.
func (c *Context) resolveAnnots(pageDict types.Dict) (types.Array, error) {
	obj, ok := pageDict["Annots"]
	if !ok {
		return nil, nil
	}
	resolved, err := c.Table.Dereference(obj)
	if err != nil {
		return nil, err
	}
	arr, ok := resolved.(types.Array)
	if !ok {
		return nil, errors.Wrap(errs.ErrTypeMismatch, "model: /Annots is not an array")
	}
	return append(types.Array(nil), arr...), nil
}
