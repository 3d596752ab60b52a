package xsection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins(t *testing.T) {
	lib := NewLibrary()
	assert.Equal(t, []string{MetalRouting, Nitride, Rib, Strip}, lib.List())

	strip, ok := lib.Get(Strip)
	require.True(t, ok)
	assert.Equal(t, 10.0, strip.Radius)
	assert.InDelta(t, 2.5, strip.Separation(), 1e-12)

	metal, ok := lib.Get(MetalRouting)
	require.True(t, ok)
	assert.Zero(t, metal.Radius)

	rib, _ := lib.Get(Rib)
	assert.Equal(t, RibSlabWidth, rib.OuterWidth())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		xs      CrossSection
		wantErr bool
		errMsg  string
	}{
		{name: "valid", xs: CrossSection{Name: "a", Width: 1}},
		{name: "missing name", xs: CrossSection{Width: 1}, wantErr: true, errMsg: "name is required"},
		{name: "zero width", xs: CrossSection{Name: "a"}, wantErr: true, errMsg: "width must be positive"},
		{name: "negative radius", xs: CrossSection{Name: "a", Width: 1, Radius: -1}, wantErr: true, errMsg: "radius"},
		{name: "bad section", xs: CrossSection{Name: "a", Width: 1, Sections: []Section{{Layer: "x"}}}, wantErr: true, errMsg: "section 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.xs.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	lib := NewLibrary()
	require.Error(t, lib.Register(CrossSection{Name: "bad"}))
	require.NoError(t, lib.Register(CrossSection{Name: "wide", Width: 3, Radius: 50}))

	x, ok := lib.Get("wide")
	require.True(t, ok)
	assert.Equal(t, 50.0, x.Radius)
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xs.yaml")
	in := []CrossSection{{Name: "thick", Width: 2, Radius: 30, Layer: "WG", Spacing: 1}}
	require.NoError(t, SaveToFile(path, in))

	out, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cross_sections:\n  - name: x\n    width: 0\n"), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cross-section")
}
