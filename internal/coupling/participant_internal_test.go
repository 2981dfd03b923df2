package coupling

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveDataRejectsWindowMismatch(t *testing.T) {
	cfg := Config{
		TimeWindowSize: 1,
		MaxTime:        2,
		MeshName:       "interface",
		Participants: []ParticipantConfig{
			{Name: "solver", Role: RoleConnector, WriteData: "dummy", ReadData: "boundary-data"},
			{Name: "generator", Role: RoleAcceptor, Address: "127.0.0.1:0", WriteData: "boundary-data", ReadData: "dummy"},
		},
	}
	p, err := NewParticipant(logr.Discard(), cfg, "solver")
	require.NoError(t, err)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	p.conn = client
	p.readData = make([]float64, 1)

	go func() {
		// A partner three windows ahead of our window 0.
		writeMessage(server, message{
			Kind:     kindData,
			DataName: "boundary-data",
			Window:   3,
			Values:   []float64{1},
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.receiveData(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of lockstep")
}
