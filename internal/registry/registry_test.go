package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/scrape/internal/engine"
)

func baseFactory(name string) Factory {
	return func(env engine.Env) (engine.Plugin, error) {
		return engine.NewBase(name, env, "https://example.test/", nil), nil
	}
}

func TestRegisterAndResolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("site_x", baseFactory("site_x")))

	p := r.Resolve("site_x", engine.Env{})
	require.NotNil(t, p)
	assert.Equal(t, "site_x", p.Identify().Name)
}

func TestRegister_Rejects(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("site_x", baseFactory("site_x")))

	assert.ErrorIs(t, r.Register("site_x", baseFactory("other")), ErrDuplicateID)
	assert.ErrorIs(t, r.Register("", baseFactory("x")), ErrEmptyID)
	assert.ErrorIs(t, r.Register("y", nil), ErrNilFactory)
	assert.Equal(t, []string{"site_x"}, r.Names())
}

func TestMustRegister_PanicsOnDuplicate(t *testing.T) {
	r := New()
	r.MustRegister("a", baseFactory("a"))
	assert.Panics(t, func() { r.MustRegister("a", baseFactory("a")) })
}

func TestResolve_FailuresCollapseToNil(t *testing.T) {
	r := New()
	r.MustRegister("errors", func(engine.Env) (engine.Plugin, error) {
		return nil, errors.New("bad config")
	})
	r.MustRegister("panics", func(engine.Env) (engine.Plugin, error) {
		panic("boom")
	})
	r.MustRegister("nil", func(engine.Env) (engine.Plugin, error) {
		return nil, nil
	})
	r.MustRegister("anonymous", baseFactory(""))

	tests := []struct {
		id   string
		want error
	}{
		{"missing", ErrUnknownPlugin},
		{"panics", ErrFactoryPanic},
		{"nil", ErrNilPlugin},
		{"anonymous", ErrInvalidPlugin},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Nil(t, r.Resolve(tt.id, engine.Env{}))
			_, err := r.Lookup(tt.id, engine.Env{})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Nil(t, r.Resolve("errors", engine.Env{}))
	_, err := r.Lookup("errors", engine.Env{})
	assert.ErrorContains(t, err, "bad config")
}

func TestNames_Sorted(t *testing.T) {
	r := New()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		r.MustRegister(id, baseFactory(id))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}
