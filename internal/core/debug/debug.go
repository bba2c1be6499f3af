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

// StartPprofServer starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about the relay. See https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger logrus.FieldLogger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// DumpMessage renders a decoded message for debug logs.
func DumpMessage(msg interface{}) string {
	return dumper.Sdump(msg)
}

// LogMessage writes a dump of msg at debug level, tagged with its direction.
func LogMessage(logger logrus.FieldLogger, direction string, sessionID uint64, msg interface{}) {
	logger.WithFields(logrus.Fields{
		"session":   sessionID,
		"direction": direction,
	}).Debugf("%T\n%s", msg, DumpMessage(msg))
}
