package ext2

import "github.com/sirupsen/logrus"

// newLogger returns a package-scoped logging entry for one Volume. Every
// Volume gets its own *logrus.Entry rather than mutating a shared global
// logger, since spec.md §5 guarantees exactly one writer per volume but
// says nothing about multiple volumes being open in the same process.
func newLogger() *logrus.Entry {
	return logrus.StandardLogger().WithField("component", "ext2")
}
