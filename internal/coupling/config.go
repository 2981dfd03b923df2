// Package coupling implements the fixed-purpose partitioned coupling used
// by the Laplace example: two participants exchange block scalar data on a
// shared interface mesh once per time window, over a TCP channel with
// CBOR-framed messages. The participant API mirrors the call sequence of
// the adapter it serves (set mesh vertices, initialize, advance, finalize);
// it is not a general coupling library.
package coupling

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Role decides which side of the coupling channel a participant takes.
type Role string

const (
	// RoleAcceptor listens for the partner connection.
	RoleAcceptor Role = "acceptor"
	// RoleConnector dials the partner.
	RoleConnector Role = "connector"
)

// ErrUnknownParticipant indicates a participant name that is not declared
// in the coupling configuration.
var ErrUnknownParticipant = errors.New("coupling: unknown participant")

// ParticipantConfig declares one coupling participant.
type ParticipantConfig struct {
	Name string `yaml:"name"`
	Role Role   `yaml:"role"`

	// Address is the TCP endpoint of the coupling channel. The acceptor
	// listens on it; the connector dials the acceptor's address, so the
	// field is optional for the connector.
	Address string `yaml:"address"`

	// WriteData and ReadData name the exchanged fields from this
	// participant's point of view. One participant's write data is the
	// partner's read data.
	WriteData string `yaml:"write-data"`
	ReadData  string `yaml:"read-data"`
}

// Config describes a two-participant coupling.
type Config struct {
	// TimeWindowSize is the coupling timestep both participants advance by.
	TimeWindowSize float64 `yaml:"time-window-size"`
	// MaxTime is the coupled end time; the coupling is ongoing while the
	// accumulated time is below it.
	MaxTime float64 `yaml:"max-time"`
	// MeshName names the shared interface mesh.
	MeshName string `yaml:"mesh"`

	Participants []ParticipantConfig `yaml:"participants"`
}

// LoadConfig reads and validates a coupling configuration file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "coupling: read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "coupling: parse config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the structural constraints of the configuration.
func (c Config) Validate() error {
	if c.TimeWindowSize <= 0 {
		return errors.New("coupling: time-window-size must be positive")
	}
	if c.MaxTime < c.TimeWindowSize {
		return errors.New("coupling: max-time must cover at least one time window")
	}
	if c.MeshName == "" {
		return errors.New("coupling: mesh name must be set")
	}
	if len(c.Participants) != 2 {
		return errors.Errorf("coupling: exactly two participants required, got %d", len(c.Participants))
	}

	var acceptors, connectors int
	for _, p := range c.Participants {
		switch {
		case p.Name == "":
			return errors.New("coupling: participant name must be set")
		case p.Role == RoleAcceptor && p.Address == "":
			return errors.Errorf("coupling: acceptor %q needs a listen address", p.Name)
		case p.WriteData == "" || p.ReadData == "":
			return errors.Errorf("coupling: participant %q needs write-data and read-data names", p.Name)
		}
		switch p.Role {
		case RoleAcceptor:
			acceptors++
		case RoleConnector:
			connectors++
		default:
			return errors.Errorf("coupling: participant %q has invalid role %q", p.Name, p.Role)
		}
	}
	if acceptors != 1 || connectors != 1 {
		return errors.New("coupling: need exactly one acceptor and one connector")
	}

	a, b := c.Participants[0], c.Participants[1]
	if a.Name == b.Name {
		return errors.Errorf("coupling: participant name %q declared twice", a.Name)
	}
	if a.WriteData != b.ReadData || a.ReadData != b.WriteData {
		return errors.New("coupling: write-data of one participant must be the read-data of the other")
	}

	return nil
}

// Participant returns the declaration of the named participant.
func (c Config) Participant(name string) (ParticipantConfig, error) {
	for _, p := range c.Participants {
		if p.Name == name {
			return p, nil
		}
	}
	return ParticipantConfig{}, errors.Wrapf(ErrUnknownParticipant, "%q, configured: %q and %q",
		name, c.Participants[0].Name, c.Participants[1].Name)
}

// Partner returns the declaration of the participant coupled to name.
func (c Config) Partner(name string) (ParticipantConfig, error) {
	if _, err := c.Participant(name); err != nil {
		return ParticipantConfig{}, err
	}
	for _, p := range c.Participants {
		if p.Name != name {
			return p, nil
		}
	}
	return ParticipantConfig{}, errors.Wrapf(ErrUnknownParticipant, "no partner for %q", name)
}
