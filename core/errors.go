package core

import "github.com/m-mizutani/goerr/v2"

// Error tags for the failure kinds a handler can raise. Protected content
// and sentinel results are carried by Outcome, not by errors.
var (
	TagUnsupported = goerr.NewTag("unsupported")
	TagCorrupt     = goerr.NewTag("corrupt")
	TagIO          = goerr.NewTag("io")
)

// IsCorrupt reports whether err was raised for an unparseable container.
func IsCorrupt(err error) bool { return goerr.HasTag(err, TagCorrupt) }

// IsIO reports whether err was raised for a filesystem failure.
func IsIO(err error) bool { return goerr.HasTag(err, TagIO) }

// IsUnsupported reports whether err was raised for an unsupported format.
func IsUnsupported(err error) bool { return goerr.HasTag(err, TagUnsupported) }

// Corrupt wraps err as a corrupt-container failure for path.
func Corrupt(err error, msg, path string) error {
	return goerr.Wrap(err, msg, goerr.T(TagCorrupt), goerr.V("path", path))
}

// IOError wraps err as a filesystem failure for path.
func IOError(err error, msg, path string) error {
	return goerr.Wrap(err, msg, goerr.T(TagIO), goerr.V("path", path))
}
