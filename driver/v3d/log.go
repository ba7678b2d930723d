// Copyright 2026 Tiler Labs. All rights reserved.

package v3d

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Debug topics enabled through the V3D_DEBUG environment
// variable. The value is a comma-separated list of topic
// names; "all" enables every topic.
const (
	debugBO = 1 << iota
	debugCL
	debugSubmit
	debugTFU
	debugAll = 1<<iota - 1
)

var debugMask = parseDebug(os.Getenv("V3D_DEBUG"))

func parseDebug(s string) int {
	var mask int
	for _, t := range strings.Split(s, ",") {
		switch strings.TrimSpace(t) {
		case "bo":
			mask |= debugBO
		case "cl":
			mask |= debugCL
		case "submit":
			mask |= debugSubmit
		case "tfu":
			mask |= debugTFU
		case "all":
			mask |= debugAll
		}
	}
	return mask
}

var logger = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	if debugMask != 0 {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}()

// Per-subsystem entries. Debug output is suppressed
// unless the matching topic is enabled.
var (
	boLog     = logger.WithField("subsys", "bo")
	clLog     = logger.WithField("subsys", "cl")
	submitLog = logger.WithField("subsys", "submit")
	tfuLog    = logger.WithField("subsys", "tfu")
)

func debugOn(topic int) bool { return debugMask&topic != 0 }

// submitLimit bounds how often submission failures are
// reported. A wedged GPU would otherwise flood the log,
// one line per submit.
var submitLimit = rate.NewLimiter(rate.Every(10*time.Second), 1)
