package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
}

// StartPprofServer starts the default pprof HTTP server that can be accessed
// via localhost to get runtime information about the proxy.
// See https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// LogPacket dumps a decoded packet to the debug log. direction describes who
// sent it (e.g. "client->proxy").
func LogPacket(logger *logrus.Logger, direction string, packet any) {
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.Debugf("%s %T\n%s", direction, packet, dumpConfig.Sdump(packet))
	}
}
