package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Direct(t *testing.T) {
	tr, err := New(Options{})
	require.NoError(t, err)
	assert.Nil(t, tr.Proxy)
	assert.Nil(t, tr.DialTLSContext)
	assert.True(t, tr.ForceAttemptHTTP2)
}

func TestNew_Fingerprint(t *testing.T) {
	tr, err := New(Options{Fingerprint: true})
	require.NoError(t, err)
	assert.NotNil(t, tr.DialTLSContext)
	assert.False(t, tr.ForceAttemptHTTP2)
}

func TestNew_BadProxy(t *testing.T) {
	_, err := New(Options{Proxy: "ftp://nope:21"})
	assert.Error(t, err)
}
