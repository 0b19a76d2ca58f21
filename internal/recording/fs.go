package recording

import (
	"os"
	"path"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// EnsureDirWritable creates the directory if needed and confirms a file can
// actually be written into it before any SFU resources are allocated.
func EnsureDirWritable(dir string, dirMode os.FileMode) error {
	dir = path.Clean(dir)

	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.Wrapf(ErrOutputUnwritable, "could not create %s: %v", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".rec-perm-check-*")
	if err != nil {
		return errors.Wrapf(ErrOutputUnwritable, "%s: %v", dir, err)
	}

	_ = tmpFile.Close()
	if err := os.Remove(tmpFile.Name()); err != nil {
		log.WithField("file", tmpFile.Name()).
			Warnf("could not remove permission check file: %v", err)
	}

	return nil
}

func parseFileMode(mode string, fallback os.FileMode) os.FileMode {
	parsed, err := strconv.ParseUint(mode, 0, 32)
	if err != nil {
		log.Warnf("invalid file mode %s, using %#o", mode, fallback)
		return fallback
	}
	return os.FileMode(parsed)
}
