// Package output enforces the output-path policy: an existing file is never
// silently overwritten. Without the force flag it is a fatal error; with it
// the file is renamed aside to a backup before any capture starts.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bryanchriswhite/screenrec/internal/logger"
)

// ErrOutputExists indicates the output path is already occupied and force
// was not given.
var ErrOutputExists = errors.New("output file already exists")

// Prepare validates the output path before any capture side effect. When
// the path is occupied and force is set, the existing file is renamed aside
// and the backup path is returned; the original content is never deleted.
func Prepare(path string, force bool) (backup string, err error) {
	log := logger.WithComponent("output")

	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return "", fmt.Errorf("output directory: %w", err)
		}
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat output path: %w", err)
	}

	if !force {
		return "", fmt.Errorf("%w: %s", ErrOutputExists, path)
	}

	backup = path + ".bak"
	if _, err := os.Stat(backup); err == nil {
		// Don't clobber an earlier backup either.
		backup = fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
	}

	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("rename existing output aside: %w", err)
	}

	log.Warn().Str("path", path).Str("backup", backup).Msg("existing output renamed aside")
	return backup, nil
}
