package main

import (
	"fmt"
	"os"

	fuzzyfinder "github.com/ktr0731/go-fuzzyfinder"
)

// runInteractiveSelection lets the user pick leaves of the tree with a
// fuzzy finder. A confirmed pick replaces the current selection with
// exactly the chosen files; aborting keeps the selection as it was.
func runInteractiveSelection(tree *FileNode) error {
	leaves := tree.Leaves()
	if len(leaves) == 0 {
		return fmt.Errorf("no files found to select from")
	}

	idx, err := fuzzyfinder.FindMulti(
		leaves,
		func(i int) string {
			return leaves[i].Path
		},
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return "Select files to process. Press Tab to multi-select, Enter to confirm."
			}
			leaf := leaves[i]
			info, statErr := os.Stat(leaf.Path)
			if statErr != nil {
				return fmt.Sprintf("Path: %s\nError getting info: %v", leaf.Path, statErr)
			}
			state := "included"
			if !leaf.EffectiveIncluded() {
				state = "excluded"
			}
			return fmt.Sprintf("Path: %s\nSize: %d bytes\nCurrently: %s", leaf.Path, info.Size(), state)
		}),
	)
	if err != nil {
		if err == fuzzyfinder.ErrAbort {
			fmt.Fprintln(os.Stderr, "Interactive selection aborted; keeping current selection.")
			return nil
		}
		return fmt.Errorf("fuzzy finder error: %w", err)
	}

	tree.ToggleDirectory(false)
	for _, i := range idx {
		leaves[i].ToggleLeaf(true)
	}
	return nil
}
