package coupling_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidscn/coupled-laplace/internal/coupling"
)

// freeAddress reserves a listenable localhost address for a test coupling
// channel.
func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func pairConfig(t *testing.T, maxTime float64) coupling.Config {
	t.Helper()
	return coupling.Config{
		TimeWindowSize: 1,
		MaxTime:        maxTime,
		MeshName:       "interface",
		Participants: []coupling.ParticipantConfig{
			{Name: "solver", Role: coupling.RoleConnector, WriteData: "dummy", ReadData: "boundary-data"},
			{Name: "generator", Role: coupling.RoleAcceptor, Address: freeAddress(t), WriteData: "boundary-data", ReadData: "dummy"},
		},
	}
}

// runGenerator drives the acceptor side: it serves value(x, t) at every
// received vertex for each time window and reports the first error.
func runGenerator(ctx context.Context, cfg coupling.Config, value func(x, t float64) float64) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)

		p, err := coupling.NewParticipant(logr.Discard(), cfg, "generator")
		if err != nil {
			errCh <- err
			return
		}
		defer p.Finalize()

		if err := p.Initialize(ctx); err != nil {
			errCh <- err
			return
		}

		coords := p.ReceivedMeshCoordinates()
		values := make([]float64, p.NVertices())
		for p.IsCouplingOngoing() {
			for i := range values {
				values[i] = value(coords[2*i], p.Time())
			}
			if err := p.WriteBlockScalarData(p.VertexIDs(), values); err != nil {
				errCh <- err
				return
			}
			if err := p.Advance(ctx, cfg.TimeWindowSize); err != nil {
				errCh <- err
				return
			}
		}
	}()
	return errCh
}

func TestCoupledExchange(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := pairConfig(t, 2)
	generatorErr := runGenerator(ctx, cfg, func(x, t float64) float64 { return x + 10*t })

	solver, err := coupling.NewParticipant(logr.Discard(), cfg, "solver")
	require.NoError(t, err)
	defer solver.Finalize()

	ids := solver.SetMeshVertices([]float64{0, 0, 0.5, 0, 1, 0})
	require.Equal(t, []int{0, 1, 2}, ids)
	require.NoError(t, solver.WriteBlockScalarData(ids, []float64{7, 8, 9}))
	require.NoError(t, solver.Initialize(ctx))

	// Initial data is the generator state at t = 0.
	got, err := solver.ReadBlockScalarData(ids)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, got, 1e-14)

	assert.True(t, solver.IsCouplingOngoing())
	assert.Equal(t, 0, solver.TimeWindow())
	assert.NotEmpty(t, solver.Session())

	// First window: advancing exchanges data and delivers t = 1 values.
	require.NoError(t, solver.Advance(ctx, cfg.TimeWindowSize))
	assert.Equal(t, 1.0, solver.Time())
	assert.Equal(t, 1, solver.TimeWindow())
	got, err = solver.ReadBlockScalarData(ids)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10, 10.5, 11}, got, 1e-14)

	// Second window ends the coupling.
	require.NoError(t, solver.Advance(ctx, cfg.TimeWindowSize))
	assert.False(t, solver.IsCouplingOngoing())
	assert.Equal(t, 2.0, solver.Time())

	require.NoError(t, <-generatorErr)

	// Advancing a finished coupling is an error.
	require.ErrorIs(t, solver.Advance(ctx, 1), coupling.ErrCouplingFinished)
}

func TestAdvanceClampsFinalWindow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 1.5 time units with dt = 1: the second window is half length.
	cfg := pairConfig(t, 1.5)
	generatorErr := runGenerator(ctx, cfg, func(x, t float64) float64 { return t })

	solver, err := coupling.NewParticipant(logr.Discard(), cfg, "solver")
	require.NoError(t, err)
	defer solver.Finalize()

	solver.SetMeshVertices([]float64{0, 0})
	require.NoError(t, solver.Initialize(ctx))

	require.NoError(t, solver.Advance(ctx, 1))
	assert.Equal(t, 1.0, solver.Time())
	assert.True(t, solver.IsCouplingOngoing())

	require.NoError(t, solver.Advance(ctx, 1))
	assert.Equal(t, 1.5, solver.Time())
	assert.False(t, solver.IsCouplingOngoing())

	require.NoError(t, <-generatorErr)
}

func TestAdvanceSurfacesPartnerLoss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Four time units configured, but the generator drops off after
	// serving one window.
	cfg := pairConfig(t, 4)

	acceptorErr := make(chan error, 1)
	go func() {
		defer close(acceptorErr)

		p, err := coupling.NewParticipant(logr.Discard(), cfg, "generator")
		if err != nil {
			acceptorErr <- err
			return
		}
		if err := p.Initialize(ctx); err != nil {
			acceptorErr <- err
			return
		}
		if err := p.WriteBlockScalarData(p.VertexIDs(), []float64{1}); err != nil {
			acceptorErr <- err
			return
		}
		if err := p.Advance(ctx, cfg.TimeWindowSize); err != nil {
			acceptorErr <- err
			return
		}
		acceptorErr <- p.Finalize()
	}()

	solver, err := coupling.NewParticipant(logr.Discard(), cfg, "solver")
	require.NoError(t, err)
	defer solver.Finalize()

	solver.SetMeshVertices([]float64{0, 0})
	require.NoError(t, solver.Initialize(ctx))

	// The partner's Advance completes once our data frame arrives, then it
	// closes the channel; our blocked read must surface the transport
	// error instead of hanging or reporting a finished coupling.
	err = solver.Advance(ctx, cfg.TimeWindowSize)
	require.Error(t, err)
	require.NotErrorIs(t, err, coupling.ErrCouplingFinished)

	require.NoError(t, <-acceptorErr)
}

func TestInitializeRequiresVertices(t *testing.T) {
	cfg := pairConfig(t, 2)
	solver, err := coupling.NewParticipant(logr.Discard(), cfg, "solver")
	require.NoError(t, err)

	require.ErrorIs(t, solver.Initialize(context.Background()), coupling.ErrNoVertices)
}

func TestDataAccessBeforeInitialize(t *testing.T) {
	cfg := pairConfig(t, 2)

	generator, err := coupling.NewParticipant(logr.Discard(), cfg, "generator")
	require.NoError(t, err)

	require.ErrorIs(t, generator.WriteBlockScalarData([]int{0}, []float64{1}), coupling.ErrNotInitialized)
	_, err = generator.ReadBlockScalarData([]int{0})
	require.ErrorIs(t, err, coupling.ErrNotInitialized)
	require.ErrorIs(t, generator.Advance(context.Background(), 1), coupling.ErrNotInitialized)
}

func TestWriteBlockScalarDataValidation(t *testing.T) {
	cfg := pairConfig(t, 2)
	solver, err := coupling.NewParticipant(logr.Discard(), cfg, "solver")
	require.NoError(t, err)
	solver.SetMeshVertices([]float64{0, 0, 1, 0})

	require.Error(t, solver.WriteBlockScalarData([]int{0}, []float64{1, 2}), "id/value length mismatch")
	require.Error(t, solver.WriteBlockScalarData([]int{5}, []float64{1}), "id out of range")
	require.NoError(t, solver.WriteBlockScalarData([]int{1}, []float64{4}))
}

func TestHandshakeRejectsWrongPartner(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	acceptorCfg := pairConfig(t, 2)

	// The dialing side believes it is called "impostor"; the acceptor
	// expects "solver".
	connectorCfg := acceptorCfg
	connectorCfg.Participants = []coupling.ParticipantConfig{
		{Name: "impostor", Role: coupling.RoleConnector, WriteData: "dummy", ReadData: "boundary-data"},
		acceptorCfg.Participants[1],
	}

	acceptorErrCh := make(chan error, 1)
	go func() {
		p, err := coupling.NewParticipant(logr.Discard(), acceptorCfg, "generator")
		if err != nil {
			acceptorErrCh <- err
			return
		}
		defer p.Finalize()
		acceptorErrCh <- p.Initialize(ctx)
	}()

	impostor, err := coupling.NewParticipant(logr.Discard(), connectorCfg, "impostor")
	require.NoError(t, err)
	defer impostor.Finalize()
	impostor.SetMeshVertices([]float64{0, 0})

	// The impostor fails during or after the handshake; the interesting
	// assertion is the acceptor's.
	_ = impostor.Initialize(ctx)

	acceptErr := <-acceptorErrCh
	require.Error(t, acceptErr)
	assert.Contains(t, acceptErr.Error(), "expected partner")
}
