package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmntree/onos/types"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := JSON()

	events := []types.LeadershipEvent{
		types.NewLeadershipEvent(types.LeaderElected, types.Leadership{
			Topic:  "sdn",
			Leader: types.ControllerNode{ID: "node-A", Addr: "10.0.0.1:6653"},
		}),
		types.NewLeadershipEvent(types.LeaderReelected, types.Leadership{
			Topic:  "ipv6",
			Leader: types.ControllerNode{ID: "node-B"},
		}),
		types.NewLeadershipEvent(types.LeaderBooted, types.Leadership{
			Topic:  "sdn",
			Leader: types.ControllerNode{ID: "node-A"},
		}),
	}

	for _, want := range events {
		data, err := c.Encode(want)
		require.NoError(t, err)

		got, err := c.Decode(data)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestJSONCodecDecodeFailure(t *testing.T) {
	c := JSON()

	_, err := c.Decode([]byte("not json"))
	require.Error(t, err)

	_, err = c.Decode(nil)
	require.Error(t, err)
}
