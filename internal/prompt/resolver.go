// Package prompt resolves agent and aggregation prompts into
// templates and renders placeholders into them.
package prompt

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dusk-indust/moa/internal/core"
)

// MaxDocumentSize is the largest prompt document Resolve will read.
const MaxDocumentSize = 1 << 20

// RootElement is the required root element of a prompt document.
const RootElement = "prompt"

// Resolved is a prompt reduced to its parts. An empty System
// means the document declared no system prompt.
type Resolved struct {
	System   string
	Template string
}

// Resolver loads prompt documents from inside a root directory.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver confined to root. An empty root means the
// process working directory at the time of each Resolve call.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Resolve returns inline specs unchanged as the template. Document references
// are located, size-checked, parsed, and their sections trimmed.
func (r *Resolver) Resolve(spec core.PromptSpec) (Resolved, error) {
	if !spec.IsDocument() {
		return Resolved{Template: string(spec)}, nil
	}

	ref := strings.TrimSpace(string(spec))
	path, err := r.locate(ref)
	if err != nil {
		return Resolved{}, err
	}

	data, err := readLimited(path)
	if err != nil {
		return Resolved{}, err
	}

	doc, err := parseDocument(ref, data)
	if err != nil {
		return Resolved{}, err
	}
	return doc, nil
}

// locate maps ref to an absolute path and enforces the root boundary, both
// lexically and after symlink evaluation.
func (r *Resolver) locate(ref string) (string, error) {
	root := r.root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", core.Wrap(core.KindPromptResolution, ref, fmt.Errorf("getwd: %w", err))
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", core.Wrap(core.KindPromptResolution, ref, err)
	}

	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	if !within(root, p) {
		return "", core.Errorf(core.KindPromptResolution, ref, "path escapes working directory")
	}

	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", core.Errorf(core.KindPromptResolution, ref, "document not found")
		}
		return "", core.Wrap(core.KindPromptResolution, ref, err)
	}
	if info.IsDir() {
		return "", core.Errorf(core.KindPromptResolution, ref, "document not found")
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", core.Wrap(core.KindPromptResolution, ref, err)
	}
	realPath, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", core.Wrap(core.KindPromptResolution, ref, err)
	}
	if !within(realRoot, realPath) {
		return "", core.Errorf(core.KindPromptResolution, ref, "path escapes working directory")
	}

	if info.Size() > MaxDocumentSize {
		return "", core.Errorf(core.KindPromptResolution, ref, "document exceeds 1 MiB")
	}
	return realPath, nil
}

// within reports whether p is root or lies beneath it.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// readLimited reads at most MaxDocumentSize bytes; a file that grew past the
// ceiling after Stat is still rejected.
func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Wrap(core.KindPromptResolution, path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxDocumentSize+1))
	if err != nil {
		return nil, core.Wrap(core.KindPromptResolution, path, err)
	}
	if len(data) > MaxDocumentSize {
		return nil, core.Errorf(core.KindPromptResolution, path, "document exceeds 1 MiB")
	}
	return data, nil
}

// document is the decoded <prompt> element.
type document struct {
	System   *string `xml:"system"`
	Template *string `xml:"template"`
}

// parseDocument decodes a prompt document. The first element must be
// <prompt>; anything other than whitespace, comments, or processing
// instructions outside it makes the document malformed.
func parseDocument(ref string, data []byte) (Resolved, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var doc document
	seenRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Resolved{}, &core.Error{Kind: core.KindPromptResolution, Op: ref, Msg: "document is not well-formed XML", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if seenRoot {
				return Resolved{}, core.Errorf(core.KindPromptResolution, ref, "document is not well-formed XML: multiple root elements")
			}
			seenRoot = true
			if t.Name.Local != RootElement {
				return Resolved{}, core.Errorf(core.KindPromptResolution, ref, "missing root element <%s>", RootElement)
			}
			if err := dec.DecodeElement(&doc, &t); err != nil {
				return Resolved{}, &core.Error{Kind: core.KindPromptResolution, Op: ref, Msg: "document is not well-formed XML", Err: err}
			}
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return Resolved{}, core.Errorf(core.KindPromptResolution, ref, "document is not well-formed XML: text outside root element")
			}
		}
	}

	if !seenRoot {
		return Resolved{}, core.Errorf(core.KindPromptResolution, ref, "missing root element <%s>", RootElement)
	}
	if doc.Template == nil {
		return Resolved{}, core.Errorf(core.KindPromptResolution, ref, "missing <template> element")
	}

	out := Resolved{Template: strings.TrimSpace(*doc.Template)}
	if doc.System != nil {
		out.System = strings.TrimSpace(*doc.System)
	}
	return out, nil
}
