package pcb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp/kicadsexp"
)

// Write serializes the board, including any applied edits, in KiCad's
// s-expression format.
func (b *Board) Write(w io.Writer) error {
	if b.root == nil {
		return fmt.Errorf("board has no parsed content")
	}
	return kicadsexp.Write(w, b.root)
}

// WriteFile writes the board to filename. The file is written to a
// temporary sibling first and renamed into place, so a failed write never
// leaves a truncated board behind.
func (b *Board) WriteFile(filename string) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := b.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write board: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write board: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(filename); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}
	return nil
}

// CopyFile copies src to dst, used to keep a backup of a board before it is
// overwritten.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return out.Close()
}
