package coupling

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// timeEpsilon absorbs accumulation error when comparing the coupled time
// against the configured end time.
const timeEpsilon = 1e-10

var (
	// ErrNoVertices indicates Initialize was called before any interface
	// vertices were registered; an empty coupling interface is always a
	// configuration mistake (wrong boundary id).
	ErrNoVertices = errors.New("coupling: no interface vertices registered")

	// ErrCouplingFinished indicates Advance was called after the coupled
	// time reached the configured end time.
	ErrCouplingFinished = errors.New("coupling: coupling already finished")

	// ErrNotInitialized indicates a data access before Initialize.
	ErrNotInitialized = errors.New("coupling: participant not initialized")
)

// Participant is one side of the two-participant coupling. The connector
// registers the interface vertices and dials; the acceptor listens,
// receives the vertices and serves data at them. Exchanges are serial and
// in lockstep: both sides advance through the same numbered time windows.
//
// A Participant is driven by a single goroutine; only the health and time
// accessors are safe for concurrent use.
type Participant struct {
	log     logr.Logger
	cfg     Config
	self    ParticipantConfig
	partner ParticipantConfig

	listener net.Listener
	conn     net.Conn

	vertices  []float64
	writeData []float64
	readData  []float64

	mu          sync.Mutex
	session     string
	time        float64
	window      int
	initialized bool
	finalized   bool
}

// NewParticipant creates the participant named name from cfg.
func NewParticipant(log logr.Logger, cfg Config, name string) (*Participant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	self, err := cfg.Participant(name)
	if err != nil {
		return nil, err
	}
	partner, err := cfg.Partner(name)
	if err != nil {
		return nil, err
	}

	return &Participant{
		log:     log.WithName("coupling").WithValues("participant", name),
		cfg:     cfg,
		self:    self,
		partner: partner,
	}, nil
}

// Dimensions returns the spatial dimension of interface vertex coordinates.
func (p *Participant) Dimensions() int {
	return 2
}

// SetMeshVertices registers the interface vertices in the flat
// [x0 y0 x1 y1 ...] layout and returns their vertex ids. The registration
// order fixes the order of all subsequently exchanged data. Only the
// connector registers vertices; the acceptor receives them.
func (p *Participant) SetMeshVertices(coords []float64) []int {
	n := len(coords) / p.Dimensions()
	p.vertices = append([]float64(nil), coords...)
	p.writeData = make([]float64, n)
	p.readData = make([]float64, n)

	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// NVertices returns the number of registered or received interface
// vertices.
func (p *Participant) NVertices() int {
	return len(p.vertices) / p.Dimensions()
}

// VertexIDs returns the ids of all interface vertices.
func (p *Participant) VertexIDs() []int {
	ids := make([]int, p.NVertices())
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// ReceivedMeshCoordinates exposes the interface vertex coordinates to the
// acceptor in the registration layout.
func (p *Participant) ReceivedMeshCoordinates() []float64 {
	return p.vertices
}

// Initialize opens the coupling channel, performs the handshake and runs
// the initial data exchange.
//
// The connector sends its registered vertices and initial write data, then
// blocks until the acceptor has published initial data for the first time
// window (the acceptor does that with its first Advance). The acceptor
// accepts the connection and returns as soon as vertices and the
// connector's initial data have arrived, so its driver can compute values
// at the received coordinates.
func (p *Participant) Initialize(ctx context.Context) error {
	switch p.self.Role {
	case RoleConnector:
		if err := p.initializeConnector(ctx); err != nil {
			return err
		}
	case RoleAcceptor:
		if err := p.initializeAcceptor(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.initialized = true
	p.mu.Unlock()

	p.log.Info("coupling initialized",
		"session", p.Session(),
		"interface_vertices", p.NVertices(),
		"max_time", p.cfg.MaxTime,
		"time_window_size", p.cfg.TimeWindowSize)
	return nil
}

func (p *Participant) initializeConnector(ctx context.Context) error {
	if p.NVertices() == 0 {
		return ErrNoVertices
	}

	if err := p.dial(ctx); err != nil {
		return err
	}

	if err := p.send(ctx, message{
		Kind:        kindHandshake,
		Version:     protocolVersion,
		Participant: p.self.Name,
		Mesh:        p.cfg.MeshName,
	}); err != nil {
		return err
	}

	ack, err := p.receive(ctx, kindHandshakeAck)
	if err != nil {
		return err
	}
	if ack.Participant != p.partner.Name {
		return errors.Errorf("coupling: connected to %q, expected partner %q", ack.Participant, p.partner.Name)
	}
	p.mu.Lock()
	p.session = ack.Session
	p.mu.Unlock()

	if err := p.send(ctx, message{Kind: kindVertices, Mesh: p.cfg.MeshName, Values: p.vertices}); err != nil {
		return err
	}

	// Initial exchange, window 0. Blocks until the partner publishes.
	if err := p.sendData(ctx); err != nil {
		return err
	}
	return p.receiveData(ctx)
}

func (p *Participant) initializeAcceptor(ctx context.Context) error {
	if err := p.accept(ctx); err != nil {
		return err
	}

	hello, err := p.receive(ctx, kindHandshake)
	if err != nil {
		return err
	}
	switch {
	case hello.Version != protocolVersion:
		return errors.Errorf("coupling: partner speaks protocol %d, this build speaks %d", hello.Version, protocolVersion)
	case hello.Participant != p.partner.Name:
		return errors.Errorf("coupling: handshake from %q, expected partner %q", hello.Participant, p.partner.Name)
	case hello.Mesh != p.cfg.MeshName:
		return errors.Errorf("coupling: handshake for mesh %q, configured mesh is %q", hello.Mesh, p.cfg.MeshName)
	}

	session := uuid.NewString()
	p.mu.Lock()
	p.session = session
	p.mu.Unlock()

	if err := p.send(ctx, message{Kind: kindHandshakeAck, Participant: p.self.Name, Session: session}); err != nil {
		return err
	}

	vertices, err := p.receive(ctx, kindVertices)
	if err != nil {
		return err
	}
	if len(vertices.Values) == 0 || len(vertices.Values)%p.Dimensions() != 0 {
		return errors.Errorf("coupling: received %d vertex coordinates, not a multiple of %d", len(vertices.Values), p.Dimensions())
	}
	p.vertices = vertices.Values
	n := p.NVertices()
	p.writeData = make([]float64, n)
	p.readData = make([]float64, n)

	// The connector's half of the window 0 exchange; our half is published
	// by the first Advance once initial values have been written.
	return p.receiveData(ctx)
}

// IsCouplingOngoing reports whether further time windows remain.
func (p *Participant) IsCouplingOngoing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized && !p.finalized && p.time < p.cfg.MaxTime-timeEpsilon
}

// Time returns the coupled time reached so far.
func (p *Participant) Time() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time
}

// TimeWindow returns the index of the last completed exchange.
func (p *Participant) TimeWindow() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.window
}

// Session returns the session id agreed during the handshake.
func (p *Participant) Session() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// IsHealthy reports whether the coupling channel is usable. It satisfies
// the status page's health client.
func (p *Participant) IsHealthy(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized && !p.finalized
}

// WriteBlockScalarData stores values for the identified vertices into the
// write buffer exchanged on the next Advance.
func (p *Participant) WriteBlockScalarData(ids []int, values []float64) error {
	if len(p.writeData) == 0 {
		return ErrNotInitialized
	}
	if len(ids) != len(values) {
		return errors.Errorf("coupling: %d ids for %d values", len(ids), len(values))
	}
	for i, id := range ids {
		if id < 0 || id >= len(p.writeData) {
			return errors.Errorf("coupling: vertex id %d out of range [0, %d)", id, len(p.writeData))
		}
		p.writeData[id] = values[i]
	}
	return nil
}

// ReadBlockScalarData returns the most recently received values for the
// identified vertices.
func (p *Participant) ReadBlockScalarData(ids []int) ([]float64, error) {
	if len(p.readData) == 0 {
		return nil, ErrNotInitialized
	}
	values := make([]float64, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(p.readData) {
			return nil, errors.Errorf("coupling: vertex id %d out of range [0, %d)", id, len(p.readData))
		}
		values[i] = p.readData[id]
	}
	return values, nil
}

// Advance completes the current time window: the buffered write data is
// exchanged against the partner's and the coupled time moves forward by dt
// (clamped to the configured end time). The connector sends first and then
// waits for the partner's data; the acceptor publishes its data first and
// then, if windows remain, waits for the connector's next batch.
func (p *Participant) Advance(ctx context.Context, dt float64) error {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return ErrNotInitialized
	}
	if p.finalized || p.time >= p.cfg.MaxTime-timeEpsilon {
		p.mu.Unlock()
		return ErrCouplingFinished
	}
	remaining := p.cfg.MaxTime - p.time
	p.mu.Unlock()

	if dt <= 0 {
		return errors.Errorf("coupling: non-positive timestep %g", dt)
	}
	if dt > remaining {
		dt = remaining
	}

	switch p.self.Role {
	case RoleConnector:
		p.advanceTime(dt)
		if p.IsCouplingOngoing() {
			p.nextWindow()
			if err := p.sendData(ctx); err != nil {
				return err
			}
			if err := p.receiveData(ctx); err != nil {
				return err
			}
		}

	case RoleAcceptor:
		if err := p.sendData(ctx); err != nil {
			return err
		}
		p.advanceTime(dt)
		if p.IsCouplingOngoing() {
			p.nextWindow()
			if err := p.receiveData(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// Finalize closes the coupling channel. It is safe to call more than once.
func (p *Participant) Finalize() error {
	p.mu.Lock()
	if p.finalized {
		p.mu.Unlock()
		return nil
	}
	p.finalized = true
	p.mu.Unlock()

	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	if p.listener != nil {
		if cerr := p.listener.Close(); err == nil {
			err = cerr
		}
	}
	return errors.Wrap(err, "coupling: close channel")
}

func (p *Participant) advanceTime(dt float64) {
	p.mu.Lock()
	p.time += dt
	p.mu.Unlock()
}

func (p *Participant) nextWindow() {
	p.mu.Lock()
	p.window++
	p.mu.Unlock()
}

func (p *Participant) sendData(ctx context.Context) error {
	return p.send(ctx, message{
		Kind:     kindData,
		Window:   p.TimeWindow(),
		DataName: p.self.WriteData,
		Values:   p.writeData,
	})
}

func (p *Participant) receiveData(ctx context.Context) error {
	m, err := p.receive(ctx, kindData)
	if err != nil {
		return err
	}
	switch {
	case m.DataName != p.self.ReadData:
		return errors.Errorf("coupling: received data %q, expected %q", m.DataName, p.self.ReadData)
	case m.Window != p.TimeWindow():
		return errors.Errorf("coupling: received window %d, expected %d; participants out of lockstep", m.Window, p.TimeWindow())
	case len(m.Values) != len(p.readData):
		return errors.Errorf("coupling: received %d values for %d interface vertices", len(m.Values), len(p.readData))
	}
	copy(p.readData, m.Values)
	return nil
}

// dial connects to the acceptor, retrying with backoff so start order of
// the two participants does not matter.
func (p *Participant) dial(ctx context.Context) error {
	var d net.Dialer
	backoff := 50 * time.Millisecond
	address := p.partner.Address

	for {
		conn, err := d.DialContext(ctx, "tcp", address)
		if err == nil {
			p.conn = conn
			return nil
		}

		p.log.V(1).Info("partner not reachable yet, retrying", "address", address, "backoff", backoff.String())
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "coupling: dialing %s", address)
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

func (p *Participant) accept(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", p.self.Address)
	if err != nil {
		return errors.Wrapf(err, "coupling: listening on %s", p.self.Address)
	}
	p.listener = listener
	p.log.V(1).Info("waiting for partner", "address", listener.Addr().String())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-done:
		}
	}()

	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "coupling: accepting partner")
		}
		return errors.Wrap(err, "coupling: accepting partner")
	}
	p.conn = conn
	return nil
}

// send writes a frame, aborting the blocked write when ctx is cancelled.
func (p *Participant) send(ctx context.Context, m message) error {
	defer p.interruptOnCancel(ctx)()
	return writeMessage(p.conn, m)
}

// receive reads the next frame and checks its kind.
func (p *Participant) receive(ctx context.Context, want messageKind) (message, error) {
	defer p.interruptOnCancel(ctx)()

	m, err := readMessage(p.conn)
	if err != nil {
		return message{}, err
	}
	if m.Kind != want {
		return message{}, errors.Errorf("coupling: received message kind %d, expected %d", m.Kind, want)
	}
	return m, nil
}

// interruptOnCancel arranges for blocked connection I/O to fail promptly
// when ctx is cancelled. The returned stop function must be called once the
// I/O completed.
func (p *Participant) interruptOnCancel(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// A deadline in the past aborts in-flight reads and writes.
			p.conn.SetDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	return func() { close(done) }
}
