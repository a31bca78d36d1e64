package test

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"

	"github.com/hellofresh/goengine-core"
	goengineLogger "github.com/hellofresh/goengine-core/extension/logrus"
)

// NewLogger returns a debug level goengine.Logger and a hook to inspect the written entries.
// The output is discarded since mailbox goroutines may still log after a test finished.
func NewLogger() (goengine.Logger, *logrusTest.Hook) {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(ioutil.Discard)

	return goengineLogger.Wrap(logger), logrusTest.NewLocal(logger)
}
