package cli

import (
	"errors"
	"path/filepath"

	perrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/lockfile"
	"github.com/matzehuels/pylock/pkg/pipfile"
)

// project is a Pipfile and, when present, its lock file.
type project struct {
	dir      string
	pipfile  *pipfile.Pipfile
	lockfile *lockfile.Lockfile // nil when the project is not locked yet
}

func (p *project) pipfilePath() string { return filepath.Join(p.dir, pipfile.FileName) }
func (p *project) lockPath() string    { return filepath.Join(p.dir, lockfile.FileName) }

// loadProject reads the Pipfile of the --project directory and its lock
// file if one exists.
func (c *CLI) loadProject() (*project, error) {
	dir, err := filepath.Abs(c.project)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "project directory %q", c.project)
	}
	p := &project{dir: dir}
	if p.pipfile, err = pipfile.Load(p.pipfilePath()); err != nil {
		return nil, err
	}
	p.lockfile, err = lockfile.Load(p.lockPath())
	if errors.Is(err, lockfile.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// requireLock returns the lock file or an error telling the user to lock.
func (p *project) requireLock() (*lockfile.Lockfile, error) {
	if p.lockfile == nil {
		return nil, perrors.Wrap(perrors.ErrCodeLockfile, lockfile.ErrNotFound, "%s does not exist, run \"%s lock\" first", lockfile.FileName, appName)
	}
	return p.lockfile, nil
}

// save writes the Pipfile when changed is set, then the lock file.
func (p *project) save(changed bool) error {
	if changed {
		if err := p.pipfile.Save(p.pipfilePath()); err != nil {
			return err
		}
	}
	if p.lockfile == nil {
		return nil
	}
	return p.lockfile.Save(p.lockPath())
}
