package audio

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TempGuard owns the deletion of one request-scoped temporary file. Release
// is safe to call from any exit path; the removal happens at most once and
// failures are logged, never surfaced. Protected fixture files are spared.
type TempGuard struct {
	path      string
	protected []string
	once      sync.Once
	log       *slog.Logger
}

// NewTempGuard creates a guard for path. An empty path yields a no-op guard,
// which lets callers defer Release unconditionally.
func NewTempGuard(path string, protected []string, log *slog.Logger) *TempGuard {
	if log == nil {
		log = slog.Default()
	}
	return &TempGuard{path: path, protected: protected, log: log}
}

// Release deletes the guarded file unless it matches a protected fixture
// name. Best-effort: a failed unlink is logged and swallowed.
func (g *TempGuard) Release() {
	g.once.Do(func() {
		if g.path == "" || isProtected(g.path, g.protected) {
			return
		}
		if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
			g.log.Warn("failed to remove temp file", "path", g.path, "error", err)
		}
	})
}

func isProtected(path string, protected []string) bool {
	base := filepath.Base(path)
	for _, name := range protected {
		if base == name || strings.HasSuffix(path, name) {
			return true
		}
	}
	return false
}
