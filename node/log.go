package node

import (
	"github.com/sirupsen/logrus"
)

// DefaultLogger returns the logger nodes write to unless WithLogger
// overrides it.
func DefaultLogger() *logrus.Logger {
	return logrus.StandardLogger()
}

// nodeEntry tags every log line with the node's qualified graph name.
func nodeEntry(logger *logrus.Logger, qualifiedName string) *logrus.Entry {
	return logger.WithField("node", qualifiedName)
}
