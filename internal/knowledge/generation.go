package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zero-day-ai/threatviz/internal/fsx"
	"github.com/zero-day-ai/threatviz/internal/types"
)

// An index directory holds immutable generation directories and a CURRENT
// file naming the live one:
//
//	<root>/<name>/CURRENT
//	<root>/<name>/gen-<unixnano>-<suffix>/manifest.json
//	<root>/<name>/gen-<unixnano>-<suffix>/index.db
//
// Publishing renames a finished staging directory to a new generation and
// then replaces CURRENT with one atomic rename. Readers resolve CURRENT once
// and read both files from the same generation.
const (
	currentFile      = "CURRENT"
	generationPrefix = "gen-"
	stagingPattern   = ".build-*"

	// keepGenerations is how many generations survive a publish, the live
	// one included. The previous generation stays for readers that resolved
	// CURRENT just before the swap.
	keepGenerations = 2
)

// currentGeneration returns the live generation directory of indexDir. A
// missing CURRENT is ErrIndexNotFound.
func currentGeneration(indexDir string) (string, error) {
	// #nosec G304 -- indexDir is derived from the configured index root.
	data, err := os.ReadFile(filepath.Join(indexDir, currentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrIndexNotFound
	}
	if err != nil {
		return "", types.WrapError(types.INDEX_CORRUPT, "failed to read index pointer", err)
	}

	gen := strings.TrimSpace(string(data))
	if !strings.HasPrefix(gen, generationPrefix) || filepath.Base(gen) != gen {
		return "", types.NewError(types.INDEX_CORRUPT, fmt.Sprintf("index pointer names invalid generation %q", gen))
	}
	return filepath.Join(indexDir, gen), nil
}

// publishGeneration turns the finished staging directory into a new
// generation and points CURRENT at it.
func publishGeneration(indexDir, staging string) (string, error) {
	suffix := strings.TrimPrefix(filepath.Base(staging), strings.TrimSuffix(stagingPattern, "*"))
	gen := fmt.Sprintf("%s%020d-%s", generationPrefix, time.Now().UnixNano(), suffix)
	genDir := filepath.Join(indexDir, gen)

	if err := os.Rename(staging, genDir); err != nil {
		return "", fmt.Errorf("rename staging directory: %w", err)
	}
	if err := fsx.WriteFileAtomic(filepath.Join(indexDir, currentFile), []byte(gen+"\n"), 0o644); err != nil {
		_ = os.RemoveAll(genDir)
		return "", err
	}
	return gen, nil
}

// pruneGenerations removes all but the newest keepGenerations generations.
// live is never removed.
func pruneGenerations(indexDir, live string) error {
	entries, err := os.ReadDir(indexDir)
	if err != nil {
		return err
	}

	var gens []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), generationPrefix) {
			gens = append(gens, e.Name())
		}
	}
	// Names embed a zero-padded timestamp, so lexical order is age order.
	sort.Sort(sort.Reverse(sort.StringSlice(gens)))

	var errs []error
	for i, gen := range gens {
		if i < keepGenerations || gen == live {
			continue
		}
		if err := os.RemoveAll(filepath.Join(indexDir, gen)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
