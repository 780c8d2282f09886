package eventlog

import (
	"testing"

	"github.com/Overland-East-Bay/club-registry/internal/adapters/contracttest"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
	eventlogport "github.com/Overland-East-Bay/club-registry/internal/ports/out/eventlog"
)

func TestContract_EventLog(t *testing.T) {
	contracttest.RunEventLog(t, func(t *testing.T) (eventlogport.Publisher, contracttest.EventReader, func()) {
		t.Helper()
		l := NewLog()
		return l, func() ([]domain.Event, error) { return l.Events(), nil }, nil
	})
}
