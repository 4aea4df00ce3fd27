package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/monochromegane/go-gitignore"
)

// DisplayState is how a node's label should be rendered: Plain when the node
// and its whole subtree are included, Bold when the whole subtree is
// excluded, Oblique when the subtree is mixed.
type DisplayState int

const (
	DisplayPlain DisplayState = iota
	DisplayBold
	DisplayOblique
)

// FileNode is one file or directory in the selection tree. The tree mirrors
// the source directory layout and carries the per-node selection state the
// pipeline reads at run start.
type FileNode struct {
	Path     string
	Name     string
	Depth    int
	IsDir    bool
	Children []*FileNode
	Parent   *FileNode // lookup only, the Children slice owns the nodes

	Included    bool
	Masked      bool
	FilteredOut bool
	Display     DisplayState
}

// ScanOptions control which entries the directory scan picks up.
type ScanOptions struct {
	ShowHidden bool
	NoIgnore   bool // don't respect a .gitignore at the source root
	AssetExt   string
}

// BuildTree scans root recursively into a selection tree. Every leaf starts
// included. Fails with ErrSourceNotFound if root does not exist and with
// ErrNoAssetFiles if no file in the subtree carries the asset extension.
func BuildTree(root string, opts ScanOptions) (*FileNode, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, root)
		}
		return nil, fmt.Errorf("error accessing source %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", root)
	}

	var matcher gitignore.IgnoreMatcher
	if !opts.NoIgnore {
		// Only the root-level .gitignore is honored; nested ignore files
		// are rare in asset libraries.
		ignorePath := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(ignorePath); err == nil {
			m, err := gitignore.NewGitIgnore(ignorePath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not parse %s: %v\n", ignorePath, err)
			} else {
				matcher = m
			}
		}
	}

	node := &FileNode{
		Path:     root,
		Name:     filepath.Base(root),
		IsDir:    true,
		Included: true,
	}
	hasAsset, err := scanInto(node, root, opts, matcher)
	if err != nil {
		return nil, err
	}
	if !hasAsset {
		return nil, fmt.Errorf("%w: no %s file under %s", ErrNoAssetFiles, opts.AssetExt, root)
	}
	return node, nil
}

func scanInto(dir *FileNode, root string, opts ScanOptions, matcher gitignore.IgnoreMatcher) (bool, error) {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		return false, fmt.Errorf("error scanning %s: %w", dir.Path, err)
	}

	hasAsset := false
	for _, e := range entries {
		name := e.Name()
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir.Path, name)
		if matcher != nil {
			rel, _ := filepath.Rel(root, path)
			if matcher.Match(rel, e.IsDir()) {
				continue
			}
		}

		child := &FileNode{
			Path:     path,
			Name:     name,
			Depth:    dir.Depth + 1,
			IsDir:    e.IsDir(),
			Parent:   dir,
			Included: true,
		}
		dir.Children = append(dir.Children, child)

		if e.IsDir() {
			sub, err := scanInto(child, root, opts, matcher)
			if err != nil {
				return false, err
			}
			hasAsset = hasAsset || sub
		} else if strings.HasSuffix(name, opts.AssetExt) {
			hasAsset = true
		}
	}
	return hasAsset, nil
}

// IsLeaf reports whether the node is a file.
func (n *FileNode) IsLeaf() bool { return !n.IsDir }

// EffectiveIncluded is the leaf's combined selection state: user-included
// and not masked by the format filter.
func (n *FileNode) EffectiveIncluded() bool { return n.Included && !n.Masked }

func (n *FileNode) setIncluded(state bool) {
	n.Included = state
	if state {
		n.Display = DisplayPlain
	} else {
		n.Display = DisplayBold
	}
}

// ToggleLeaf sets a leaf's inclusion and re-derives the ancestors' state.
func (n *FileNode) ToggleLeaf(state bool) {
	n.setIncluded(state)
	if n.Parent != nil {
		n.Parent.childInclude(state)
	}
}

// ToggleDirectory forces the same inclusion onto the directory and its whole
// subtree, then re-derives the ancestors' state.
func (n *FileNode) ToggleDirectory(state bool) {
	n.setSubtree(state)
	if n.Parent != nil {
		n.Parent.childInclude(state)
	}
}

func (n *FileNode) setSubtree(state bool) {
	n.setIncluded(state)
	for _, ch := range n.Children {
		ch.setSubtree(state)
	}
}

// childInclude re-derives a directory's inclusion and display state after
// one of its children changed to the given state. A parent only flips to
// excluded once every child is excluded; a parent with a mixed subtree shows
// Oblique. Recursion stops at the first ancestor whose state did not change.
func (n *FileNode) childInclude(state bool) {
	prevIncluded, prevDisplay := n.Included, n.Display

	change := n.Included != state
	plain := state
	if !state {
		for _, ch := range n.Children {
			if ch.Included {
				change = false
				break
			}
		}
	} else {
		for _, ch := range n.Children {
			if ch.Display != DisplayPlain {
				plain = false
				break
			}
		}
	}

	if change {
		n.Included = state
		switch {
		case !state:
			n.Display = DisplayBold
		case plain:
			n.Display = DisplayPlain
		default:
			n.Display = DisplayOblique
		}
	} else if plain {
		n.Display = DisplayPlain
	} else {
		n.Display = DisplayOblique
	}

	if (n.Included != prevIncluded || n.Display != prevDisplay) && n.Parent != nil {
		n.Parent.childInclude(state)
	}
}

// ApplyTextFilter marks nodes whose name does not contain query
// (case-insensitive) as filtered out of the display. Directories are
// filtered out only when everything below them is. Selection state is left
// alone. Returns whether this node ended up filtered out.
func (n *FileNode) ApplyTextFilter(query string) bool {
	if len(n.Children) == 0 {
		n.FilteredOut = query != "" &&
			!strings.Contains(strings.ToLower(n.Name), strings.ToLower(query))
		return n.FilteredOut
	}
	all := true
	for _, ch := range n.Children {
		if !ch.ApplyTextFilter(query) {
			all = false
		}
	}
	n.FilteredOut = all
	return all
}

// ApplyFormatMask disables every leaf whose name does not end with ext
// (case-sensitive suffix match) when maskNonMatching is set, and clears all
// masks otherwise. A directory is masked once every child is. Returns
// whether this node ended up masked.
func (n *FileNode) ApplyFormatMask(ext string, maskNonMatching bool) bool {
	if len(n.Children) == 0 {
		if n.IsDir {
			// Empty directories are no-op nodes and stay enabled.
			n.Masked = false
		} else if maskNonMatching {
			n.Masked = !strings.HasSuffix(n.Name, ext)
		} else {
			n.Masked = false
		}
		return n.Masked
	}
	all := true
	for _, ch := range n.Children {
		if !ch.ApplyFormatMask(ext, maskNonMatching) {
			all = false
		}
	}
	n.Masked = maskNonMatching && all
	return n.Masked
}

// AddFilterMatchesToSelection includes every leaf the current text filter
// left visible. Directories with no visible descendant are untouched.
func (n *FileNode) AddFilterMatchesToSelection() {
	if n.IsLeaf() {
		if !n.FilteredOut {
			n.setIncluded(true)
			if n.Parent != nil {
				n.Parent.childInclude(true)
			}
		}
		return
	}
	for _, ch := range n.Children {
		ch.AddFilterMatchesToSelection()
	}
}

// ReplaceSelectionWithFilterMatches clears the whole selection, then
// includes exactly the leaves the current text filter left visible.
func (n *FileNode) ReplaceSelectionWithFilterMatches() {
	n.setSubtree(false)
	n.AddFilterMatchesToSelection()
}

// FlattenEffective returns, in scan order, the paths of all leaves that are
// included and not masked. A directory that is excluded or fully masked
// prunes its whole subtree.
func (n *FileNode) FlattenEffective() []string {
	var out []string
	n.flattenInto(&out)
	return out
}

func (n *FileNode) flattenInto(out *[]string) {
	if !n.EffectiveIncluded() {
		return
	}
	if n.IsLeaf() {
		*out = append(*out, n.Path)
		return
	}
	for _, ch := range n.Children {
		ch.flattenInto(out)
	}
}

// Leaves returns all file nodes in scan order, regardless of state.
func (n *FileNode) Leaves() []*FileNode {
	var out []*FileNode
	var walk func(*FileNode)
	walk = func(node *FileNode) {
		if node.IsLeaf() {
			out = append(out, node)
			return
		}
		for _, ch := range node.Children {
			walk(ch)
		}
	}
	walk(n)
	return out
}
