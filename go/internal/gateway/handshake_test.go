package gateway

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcdev12/punchdeck/go/internal/punch"
)

func TestHandshakeNeverTrailsConcurrentPunch(t *testing.T) {
	hub := newTestHub(t)
	cm := hub.svc.NewListener("race")

	for i := 0; i < 2000; i++ {
		display := attach(cm, ChannelUISignals, 8)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.svc.OnConnect(display)
		}()
		go func() {
			defer wg.Done()
			hub.svc.emitPunch(punch.Event{
				Type:           punch.EventTypePunch,
				Acceleration:   20,
				Classification: punch.ClassificationStrong,
			})
		}()
		wg.Wait()

		frames := drain(display)
		require.NotEmpty(t, frames)

		var last struct {
			SyncCounter int64 `json:"syncCounter"`
		}
		require.NoError(t, json.Unmarshal([]byte(frames[len(frames)-1]), &last))
		require.Equal(t, hub.svc.Counter().Current(), last.SyncCounter, "iteration %d", i)

		cm.unregisterConnection(display)
	}
}
