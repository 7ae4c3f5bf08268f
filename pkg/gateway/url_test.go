package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustHostStripsScheme(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8787", mustHost("http://127.0.0.1:8787"))
	assert.Equal(t, "0.0.0.0:8786", mustHost("tls://0.0.0.0:8786"))
}

func TestMustHostPassesThroughBareAddress(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8787", mustHost("127.0.0.1:8787"))
}
