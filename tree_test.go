package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

var testScan = ScanOptions{AssetExt: ".obj"}

// makeSourceTree lays out the standard fixture:
//
//	root/
//	  a.obj
//	  b.txt
//	  sub/
//	    c.obj
func makeSourceTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.obj"), tetOBJ("a", 0))
	writeFile(t, filepath.Join(root, "b.txt"), "not an asset\n")
	writeFile(t, filepath.Join(root, "sub", "c.obj"), tetOBJ("c", 0))
	return root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func findNode(t *testing.T, tree *FileNode, name string) *FileNode {
	t.Helper()
	var found *FileNode
	var walk func(*FileNode)
	walk = func(n *FileNode) {
		if n.Name == name {
			found = n
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(tree)
	if found == nil {
		t.Fatalf("node %q not found in tree", name)
	}
	return found
}

func TestBuildTreeMissingSource(t *testing.T) {
	_, err := BuildTree(filepath.Join(t.TempDir(), "nope"), testScan)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestBuildTreeNoAssets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "readme.txt"), "x")
	_, err := BuildTree(root, testScan)
	if !errors.Is(err, ErrNoAssetFiles) {
		t.Fatalf("expected ErrNoAssetFiles, got %v", err)
	}
}

func TestBuildTreeStructure(t *testing.T) {
	root := makeSourceTree(t)
	tree, err := BuildTree(root, testScan)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Depth != 0 || tree.Parent != nil {
		t.Errorf("root must have depth 0 and no parent")
	}
	c := findNode(t, tree, "c.obj")
	if c.Depth != 2 || c.Parent.Name != "sub" {
		t.Errorf("c.obj: depth=%d parent=%v", c.Depth, c.Parent)
	}
	want := []string{
		filepath.Join(root, "a.obj"),
		filepath.Join(root, "b.txt"),
		filepath.Join(root, "sub", "c.obj"),
	}
	if got := tree.FlattenEffective(); !reflect.DeepEqual(got, want) {
		t.Errorf("FlattenEffective() = %v, want %v", got, want)
	}
}

func TestBuildTreeRespectsGitignore(t *testing.T) {
	root := makeSourceTree(t)
	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	writeFile(t, filepath.Join(root, ".gitignore"), "ignored.txt\n")

	tree, err := BuildTree(root, testScan)
	if err != nil {
		t.Fatal(err)
	}
	for _, leaf := range tree.Leaves() {
		if leaf.Name == "ignored.txt" || leaf.Name == ".gitignore" {
			t.Errorf("%s should not be in the tree", leaf.Name)
		}
	}

	tree, err = BuildTree(root, ScanOptions{AssetExt: ".obj", NoIgnore: true})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, leaf := range tree.Leaves() {
		if leaf.Name == "ignored.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("NoIgnore scan should keep ignored.txt")
	}
}

func TestToggleDirectoryClearsSelection(t *testing.T) {
	tree, err := BuildTree(makeSourceTree(t), testScan)
	if err != nil {
		t.Fatal(err)
	}
	tree.ToggleDirectory(false)
	if got := tree.FlattenEffective(); len(got) != 0 {
		t.Errorf("FlattenEffective() after excluding root = %v, want empty", got)
	}
	for _, leaf := range tree.Leaves() {
		if leaf.Included || leaf.Display != DisplayBold {
			t.Errorf("%s: included=%v display=%v after exclude-all", leaf.Name, leaf.Included, leaf.Display)
		}
	}
}

func TestToggleLeafRoundTrip(t *testing.T) {
	tree, err := BuildTree(makeSourceTree(t), testScan)
	if err != nil {
		t.Fatal(err)
	}

	type state struct {
		included bool
		display  DisplayState
	}
	snapshot := func() map[string]state {
		m := map[string]state{}
		var walk func(*FileNode)
		walk = func(n *FileNode) {
			m[n.Path] = state{n.Included, n.Display}
			for _, ch := range n.Children {
				walk(ch)
			}
		}
		walk(tree)
		return m
	}

	before := snapshot()
	leaf := findNode(t, tree, "c.obj")
	leaf.ToggleLeaf(false)
	leaf.ToggleLeaf(true)
	if after := snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("toggle off/on did not restore the tree: %v != %v", after, before)
	}

	// Same round trip in the other direction, from a mixed tree.
	leaf.ToggleLeaf(false)
	mixed := snapshot()
	leaf.ToggleLeaf(true)
	leaf.ToggleLeaf(false)
	if after := snapshot(); !reflect.DeepEqual(mixed, after) {
		t.Errorf("toggle on/off did not restore the tree: %v != %v", after, mixed)
	}
}

func TestPartialExclusionTurnsAncestorsOblique(t *testing.T) {
	tree, err := BuildTree(makeSourceTree(t), testScan)
	if err != nil {
		t.Fatal(err)
	}
	findNode(t, tree, "c.obj").ToggleLeaf(false)

	sub := findNode(t, tree, "sub")
	if sub.Included || sub.Display != DisplayBold {
		t.Errorf("sub with its only child excluded: included=%v display=%v", sub.Included, sub.Display)
	}
	if !tree.Included || tree.Display != DisplayOblique {
		t.Errorf("root with a mixed subtree: included=%v display=%v", tree.Included, tree.Display)
	}
}

func TestExcludingLastLeafExcludesParent(t *testing.T) {
	tree, err := BuildTree(makeSourceTree(t), testScan)
	if err != nil {
		t.Fatal(err)
	}
	findNode(t, tree, "a.obj").ToggleLeaf(false)
	findNode(t, tree, "b.txt").ToggleLeaf(false)
	findNode(t, tree, "c.obj").ToggleLeaf(false)
	if tree.Included || tree.Display != DisplayBold {
		t.Errorf("root with everything excluded: included=%v display=%v", tree.Included, tree.Display)
	}
}

func TestFormatMaskIdempotent(t *testing.T) {
	tree, err := BuildTree(makeSourceTree(t), testScan)
	if err != nil {
		t.Fatal(err)
	}
	masked := func() map[string]bool {
		m := map[string]bool{}
		var walk func(*FileNode)
		walk = func(n *FileNode) {
			m[n.Path] = n.Masked
			for _, ch := range n.Children {
				walk(ch)
			}
		}
		walk(tree)
		return m
	}

	tree.ApplyFormatMask(".obj", true)
	once := masked()
	tree.ApplyFormatMask(".obj", true)
	if twice := masked(); !reflect.DeepEqual(once, twice) {
		t.Errorf("masking twice differs from masking once")
	}

	if !findNode(t, tree, "b.txt").Masked {
		t.Errorf("b.txt should be masked")
	}
	if findNode(t, tree, "c.obj").Masked || findNode(t, tree, "sub").Masked {
		t.Errorf("asset leaves and their directories must stay unmasked")
	}

	tree.ApplyFormatMask(".obj", false)
	for path, m := range masked() {
		if m {
			t.Errorf("%s still masked after clearing", path)
		}
	}
}

func TestFlattenSkipsMaskedLeaves(t *testing.T) {
	root := makeSourceTree(t)
	tree, err := BuildTree(root, testScan)
	if err != nil {
		t.Fatal(err)
	}
	tree.ApplyFormatMask(".obj", true)

	want := []string{
		filepath.Join(root, "a.obj"),
		filepath.Join(root, "sub", "c.obj"),
	}
	if got := tree.FlattenEffective(); !reflect.DeepEqual(got, want) {
		t.Errorf("FlattenEffective() with mask = %v, want %v", got, want)
	}

	// Included state never overrides the mask.
	findNode(t, tree, "b.txt").ToggleLeaf(true)
	for _, p := range tree.FlattenEffective() {
		if filepath.Base(p) == "b.txt" {
			t.Errorf("masked leaf leaked into FlattenEffective")
		}
	}
}

func TestFullyMaskedDirectoryPrunes(t *testing.T) {
	root := makeSourceTree(t)
	writeFile(t, filepath.Join(root, "docs", "notes.txt"), "x")
	tree, err := BuildTree(root, testScan)
	if err != nil {
		t.Fatal(err)
	}
	tree.ApplyFormatMask(".obj", true)
	if !findNode(t, tree, "docs").Masked {
		t.Errorf("directory with only non-asset children should be masked")
	}
}

func TestTextFilterIsDisplayOnly(t *testing.T) {
	tree, err := BuildTree(makeSourceTree(t), testScan)
	if err != nil {
		t.Fatal(err)
	}
	tree.ApplyTextFilter("C")

	if findNode(t, tree, "c.obj").FilteredOut {
		t.Errorf("c.obj matches the filter (case-insensitive) and must stay visible")
	}
	if !findNode(t, tree, "a.obj").FilteredOut {
		t.Errorf("a.obj does not match and must be filtered out")
	}
	if findNode(t, tree, "sub").FilteredOut {
		t.Errorf("sub has a visible descendant and must stay visible")
	}

	// Processing outcome is untouched.
	if got := tree.FlattenEffective(); len(got) != 3 {
		t.Errorf("filter changed the effective selection: %v", got)
	}

	tree.ApplyTextFilter("")
	for _, leaf := range tree.Leaves() {
		if leaf.FilteredOut {
			t.Errorf("%s filtered out after clearing the filter", leaf.Name)
		}
	}
}

func TestReplaceSelectionWithFilterMatches(t *testing.T) {
	root := makeSourceTree(t)
	tree, err := BuildTree(root, testScan)
	if err != nil {
		t.Fatal(err)
	}
	tree.ApplyTextFilter("c.obj")
	tree.ReplaceSelectionWithFilterMatches()

	want := []string{filepath.Join(root, "sub", "c.obj")}
	if got := tree.FlattenEffective(); !reflect.DeepEqual(got, want) {
		t.Errorf("FlattenEffective() = %v, want %v", got, want)
	}
}

func TestAddFilterMatchesToSelection(t *testing.T) {
	root := makeSourceTree(t)
	tree, err := BuildTree(root, testScan)
	if err != nil {
		t.Fatal(err)
	}
	tree.ToggleDirectory(false)
	tree.ApplyTextFilter("a.obj")
	tree.AddFilterMatchesToSelection()

	want := []string{filepath.Join(root, "a.obj")}
	if got := tree.FlattenEffective(); !reflect.DeepEqual(got, want) {
		t.Errorf("FlattenEffective() = %v, want %v", got, want)
	}
	sub := findNode(t, tree, "sub")
	if sub.Included {
		t.Errorf("directory with no matching descendant must stay excluded")
	}
}
