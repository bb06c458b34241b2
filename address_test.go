package bc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSocketAddressAcceptsIPv4AndIPv6(t *testing.T) {
	v4, err := NewSocketAddress("127.0.0.1", 8080)
	require.NoError(t, err)
	assert.Equal(t, DomainIPv4, v4.Domain())
	assert.Equal(t, uint16(8080), v4.Port())
	assert.Equal(t, "127.0.0.1:8080", v4.String())

	v6, err := NewSocketAddress("::1", 443)
	require.NoError(t, err)
	assert.Equal(t, DomainIPv6, v6.Domain())
	assert.Equal(t, uint16(443), v6.Port())
}

func TestNewSocketAddressRejectsMalformedHosts(t *testing.T) {
	for _, host := range []string{"999.0.0.1", ":::1", "not-an-ip", ""} {
		_, err := NewSocketAddress(host, 1)
		require.Error(t, err, "host %q", host)
		var bcErr *Error
		require.True(t, errors.As(err, &bcErr), "host %q", host)
		assert.Equal(t, CodeInvalidAddress, bcErr.Code, "host %q", host)
	}
}

// TestSocketAddressRoundTripsThroughSockaddr checks that converting a
// SocketAddress to the kernel's unix.Sockaddr representation and back
// recovers the same address and port, for both address families.
func TestSocketAddressRoundTripsThroughSockaddr(t *testing.T) {
	v4, err := NewSocketAddress("192.168.1.42", 12345)
	require.NoError(t, err)
	back4, err := addressFromSockaddr(v4.sockaddr())
	require.NoError(t, err)
	assert.Equal(t, v4, back4)

	v6, err := NewSocketAddress("2001:db8::1", 9999)
	require.NoError(t, err)
	back6, err := addressFromSockaddr(v6.sockaddr())
	require.NoError(t, err)
	assert.Equal(t, v6, back6)
}
