package coupling_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidscn/coupled-laplace/internal/coupling"
)

func validConfig() coupling.Config {
	return coupling.Config{
		TimeWindowSize: 1,
		MaxTime:        10,
		MeshName:       "original-mesh",
		Participants: []coupling.ParticipantConfig{
			{
				Name:      "laplace-solver",
				Role:      coupling.RoleConnector,
				WriteData: "dummy",
				ReadData:  "boundary-data",
			},
			{
				Name:      "boundary-generator",
				Role:      coupling.RoleAcceptor,
				Address:   "127.0.0.1:7654",
				WriteData: "boundary-data",
				ReadData:  "dummy",
			},
		},
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coupling.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
time-window-size: 1.0
max-time: 10.0
mesh: original-mesh
participants:
  - name: laplace-solver
    role: connector
    write-data: dummy
    read-data: boundary-data
  - name: boundary-generator
    role: acceptor
    address: 127.0.0.1:7654
    write-data: boundary-data
    read-data: dummy
`), 0o600))

	cfg, err := coupling.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, validConfig(), cfg)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := coupling.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		Name    string
		Mutate  func(*coupling.Config)
		WantErr string
	}{
		{
			Name:   "Valid",
			Mutate: func(*coupling.Config) {},
		},
		{
			Name:    "ZeroTimeWindow",
			Mutate:  func(c *coupling.Config) { c.TimeWindowSize = 0 },
			WantErr: "time-window-size",
		},
		{
			Name:    "MaxTimeTooSmall",
			Mutate:  func(c *coupling.Config) { c.MaxTime = 0.5 },
			WantErr: "max-time",
		},
		{
			Name:    "MissingMesh",
			Mutate:  func(c *coupling.Config) { c.MeshName = "" },
			WantErr: "mesh name",
		},
		{
			Name:    "OneParticipant",
			Mutate:  func(c *coupling.Config) { c.Participants = c.Participants[:1] },
			WantErr: "exactly two participants",
		},
		{
			Name:    "MissingAcceptorAddress",
			Mutate:  func(c *coupling.Config) { c.Participants[1].Address = "" },
			WantErr: "listen address",
		},
		{
			Name:    "MissingDataName",
			Mutate:  func(c *coupling.Config) { c.Participants[0].ReadData = "" },
			WantErr: "read-data",
		},
		{
			Name:    "BadRole",
			Mutate:  func(c *coupling.Config) { c.Participants[0].Role = "observer" },
			WantErr: "invalid role",
		},
		{
			Name: "TwoConnectors",
			Mutate: func(c *coupling.Config) {
				c.Participants[1].Role = coupling.RoleConnector
			},
			WantErr: "one acceptor and one connector",
		},
		{
			Name: "DuplicateName",
			Mutate: func(c *coupling.Config) {
				c.Participants[1].Name = c.Participants[0].Name
			},
			WantErr: "declared twice",
		},
		{
			Name: "DataNamesNotCrossed",
			Mutate: func(c *coupling.Config) {
				c.Participants[1].ReadData = "something-else"
			},
			WantErr: "read-data of the other",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			cfg := validConfig()
			tc.Mutate(&cfg)

			err := cfg.Validate()
			if tc.WantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.WantErr)
		})
	}
}

func TestParticipantLookup(t *testing.T) {
	cfg := validConfig()

	p, err := cfg.Participant("laplace-solver")
	require.NoError(t, err)
	assert.Equal(t, coupling.RoleConnector, p.Role)

	partner, err := cfg.Partner("laplace-solver")
	require.NoError(t, err)
	assert.Equal(t, "boundary-generator", partner.Name)

	_, err = cfg.Participant("nobody")
	require.ErrorIs(t, err, coupling.ErrUnknownParticipant)
	assert.Contains(t, err.Error(), "laplace-solver", "error should list the configured names")
}
