package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump writes a readable representation of v at debug level. Nothing is
// formatted unless the logger would emit it.
func Dump(logger *logrus.Entry, msg string, v interface{}) {
	if logger == nil || !logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logger.Debugf("%s:\n%s", msg, dumper.Sdump(v))
}

// StartPprofServer starts the default pprof HTTP server on localhost so that
// runtime information can be pulled from a running client. See
// https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}
