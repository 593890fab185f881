package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jdelaire/plugwire/core/filter"
)

func TestRegistryPreservesOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(New("b", "")))
	require.NoError(t, r.Register(New("a", "")))
	require.NoError(t, r.Register(New("c", "")))

	var names []string
	for _, p := range r.Plugins() {
		names = append(names, p.Name())
	}
	require.Equal(t, []string{"b", "a", "c"}, names)
	require.Equal(t, 3, r.Len())
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(New("a", "x.go")))

	err := r.Register(New("a", "y.go"))
	require.ErrorIs(t, err, ErrDuplicate)
	require.Equal(t, 1, r.Len())
}

func TestRegistryNil(t *testing.T) {
	require.Error(t, NewRegistry().Register(nil))
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	p := New("a", "")
	require.NoError(t, r.Register(p))

	got, err := r.Get("a")
	require.NoError(t, err)
	require.Same(t, p, got)

	_, err = r.Get("missing")
	require.Error(t, err)
}

func TestRegistrySnapshot(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(New("a", "")))

	snap := r.Plugins()
	snap[0] = New("z", "")

	got, err := r.Get("a")
	require.NoError(t, err)
	require.Equal(t, "a", r.Plugins()[0].Name())
	require.Same(t, got, r.Plugins()[0])
}

func TestRegistryBuild(t *testing.T) {
	settings, err := filter.NewSettings("bot", []string{"/"})
	require.NoError(t, err)

	var seen filter.Settings
	builders := []Builder{
		func(s filter.Settings) (*Plugin, error) {
			seen = s
			return New("one", ""), nil
		},
		func(filter.Settings) (*Plugin, error) { return New("two", ""), nil },
	}

	r := NewRegistry()
	require.NoError(t, r.Build(settings, builders...))
	require.Equal(t, 2, r.Len())
	require.Equal(t, "bot", seen.Username())
}

func TestRegistryBuildError(t *testing.T) {
	settings, err := filter.NewSettings("bot", []string{"/"})
	require.NoError(t, err)

	boom := errors.New("bad plugin")
	r := NewRegistry()
	err = r.Build(settings,
		func(filter.Settings) (*Plugin, error) { return New("one", ""), nil },
		func(filter.Settings) (*Plugin, error) { return nil, boom },
	)
	require.ErrorIs(t, err, boom)

	err = r.Build(settings, func(filter.Settings) (*Plugin, error) { return New("one", ""), nil })
	require.ErrorIs(t, err, ErrDuplicate)
}
