package socket

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pires/go-proxyproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tcpPair returns a connected client/server pair over loopback.
func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	server = <-accepted
	require.NotNil(t, server)

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func pipePair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	client, server = net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestPollReadable(t *testing.T) {
	pairs := map[string]func(*testing.T) (net.Conn, net.Conn){
		"tcp":  tcpPair,
		"pipe": pipePair,
	}

	for name, pair := range pairs {
		t.Run(name, func(t *testing.T) {
			client, server := pair(t)
			c := New(client)

			ok, err := c.PollReadable(0)
			require.NoError(t, err)
			assert.False(t, ok)

			start := time.Now()
			ok, err = c.PollReadable(30 * time.Millisecond)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)

			go server.Write([]byte("hello"))

			ok, err = c.PollReadable(time.Second)
			require.NoError(t, err)
			assert.True(t, ok)

			data, err := c.ReadAvailable(64)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(data))
		})
	}
}

func TestPollReadableBlocking(t *testing.T) {
	client, server := pipePair(t)
	c := New(client)

	go func() {
		time.Sleep(20 * time.Millisecond)
		server.Write([]byte{1})
	}()

	ok, err := c.PollReadable(NoTimeout)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPollReadableEOF(t *testing.T) {
	client, server := tcpPair(t)
	c := New(client)

	require.NoError(t, server.Close())

	ok, err := c.PollReadable(time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.ReadAvailable(16)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadAvailableLimit(t *testing.T) {
	client, server := tcpPair(t)
	c := New(client)

	_, err := server.Write([]byte("abcdefgh"))
	require.NoError(t, err)

	ok, err := c.PollReadable(time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Wait for the whole write to land in the kernel buffer
	time.Sleep(10 * time.Millisecond)

	first, err := c.ReadAvailable(3)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(first))

	// Buffered data is readable without touching the socket
	ok, err = c.PollReadable(0)
	require.NoError(t, err)
	assert.True(t, ok)

	rest, err := c.ReadAvailable(64)
	require.NoError(t, err)
	assert.Equal(t, "defgh", string(rest))
}

func TestWriteNeedsFlush(t *testing.T) {
	client, server := pipePair(t)
	c := New(client)

	_, err := c.Write([]byte("ping"))
	require.NoError(t, err)

	got := make(chan string, 1)
	go func() {
		buf := make([]byte, 4)
		_, err := io.ReadFull(server, buf)
		if err != nil {
			got <- err.Error()
			return
		}
		got <- string(buf)
	}()

	select {
	case <-got:
		t.Fatal("data sent before Flush")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, c.Flush())
	assert.Equal(t, "ping", <-got)
}

func TestWriteProxyHeader(t *testing.T) {
	client, server := tcpPair(t)

	require.NoError(t, WriteProxyHeader(client, 2))

	header, err := proxyproto.Read(bufio.NewReader(server))
	require.NoError(t, err)
	assert.Equal(t, byte(2), header.Version)
	assert.Equal(t, client.LocalAddr().String(), header.SourceAddr.String())
	assert.Equal(t, client.RemoteAddr().String(), header.DestinationAddr.String())

	assert.Error(t, WriteProxyHeader(client, 3))
}

func TestSetTCPKeepalive(t *testing.T) {
	client, _ := tcpPair(t)
	require.NoError(t, SetTCPKeepalive(client, 10*time.Second, 5*time.Second, 3))

	pipe, _ := pipePair(t)
	assert.NoError(t, SetTCPKeepalive(pipe, time.Second, time.Second, 1))
}
