package debug

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dcrodman/squirrelay/pkg/protocol"
)

func TestDumpMessage(t *testing.T) {
	dump := DumpMessage(&protocol.EnterRoom{RoomID: 1234, Password: "secret"})

	for _, want := range []string{"RoomID", "1234", "secret"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
	if strings.Contains(dump, "0xc") {
		t.Errorf("dump contains a pointer address:\n%s", dump)
	}
}

func TestLogMessage(t *testing.T) {
	var out strings.Builder
	logger := logrus.New()
	logger.Out = &out
	logger.Level = logrus.DebugLevel

	LogMessage(logger, "in", 7, &protocol.GetRoomList{})

	if !strings.Contains(out.String(), "session=7") || !strings.Contains(out.String(), "direction=in") {
		t.Errorf("missing fields in log output: %s", out.String())
	}
	if !strings.Contains(out.String(), "GetRoomList") {
		t.Errorf("missing message type in log output: %s", out.String())
	}
}
