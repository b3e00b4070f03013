package imap_test

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"crypto/tls"

	"github.com/huessenbergnetz/skaffari-imap/imap"
	"github.com/huessenbergnetz/skaffari-imap/utils"
	"github.com/stretchr/testify/assert"
)

// Functions

// listenerPort extracts the random port a test listener
// was bound to.
func listenerPort(t *testing.T, listener net.Listener) uint16 {

	_, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("[imap.listenerPort] Failed to split listener address: %s\n", err.Error())
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		t.Fatalf("[imap.listenerPort] Failed to parse listener port: %s\n", err.Error())
	}

	return uint16(port)
}

// readLine collects bytes from the connection until one
// complete line arrived.
func readLine(t *testing.T, c *imap.Connection, timeout time.Duration) string {

	var buf []byte

	for !bytes.HasSuffix(buf, []byte("\n")) {

		if !c.WaitReadable(timeout) {
			t.Fatalf("[imap.readLine] Expected readable connection but received: '%s'\n", c.LastError().Text)
		}

		buf = append(buf, c.Read()...)
	}

	return string(buf)
}

// TestConnectPlainRoundTrip checks dialing, writing and
// reading over an unencrypted connection.
func TestConnectPlainRoundTrip(t *testing.T) {

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("[imap.TestConnectPlainRoundTrip] Failed to listen on loopback address: %s\n", err.Error())
	}
	defer listener.Close()

	go func() {

		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			return
		}

		fmt.Fprintf(conn, "echo %s", line)
	}()

	c := imap.NewConnection(nil)

	if !c.ConnectPlain("127.0.0.1", listenerPort(t, listener), imap.ProtocolAny, 2*time.Second) {
		t.Fatalf("[imap.TestConnectPlainRoundTrip] Expected successful connect but received: '%s'\n", c.LastError().Text)
	}
	defer c.Disconnect()

	assert.True(t, c.IsConnected(), "Connection should report connected state")
	assert.False(t, c.IsEncrypted(), "Plain connection should not report encryption")

	assert.True(t, c.Write([]byte("ping\r\n")), "Write should succeed")
	assert.Equal(t, "echo ping\r\n", readLine(t, c, 2*time.Second), "Server echo should arrive unchanged")

	c.Disconnect()
	assert.False(t, c.IsConnected(), "Connection should report closed state after disconnect")

	// A second disconnect has nothing left to do.
	c.Disconnect()
}

// TestDisconnectGraceful checks that a disconnect shuts
// down the write side, drains what the peer still sends
// and completes once the peer closes.
func TestDisconnectGraceful(t *testing.T) {

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("[imap.TestDisconnectGraceful] Failed to listen on loopback address: %s\n", err.Error())
	}
	defer listener.Close()

	go func() {

		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Wait for the client's half-close, then send a
		// goodbye the drain has to swallow.
		buf := make([]byte, 256)
		for {
			if _, err := conn.Read(buf); err != nil {
				break
			}
		}

		fmt.Fprint(conn, "* BYE logging out\r\n")
	}()

	c := imap.NewConnection(nil)

	if !c.ConnectPlain("127.0.0.1", listenerPort(t, listener), imap.ProtocolAny, 2*time.Second) {
		t.Fatalf("[imap.TestDisconnectGraceful] Expected successful connect but received: '%s'\n", c.LastError().Text)
	}

	start := time.Now()
	c.Disconnect()

	assert.False(t, c.IsConnected(), "Connection should report closed state after disconnect")

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("[imap.TestDisconnectGraceful] Expected prompt disconnect but it took %s.\n", elapsed)
	}
}

// TestWaitReadableTimeout checks that waiting on a silent
// server runs into the bounded timeout.
func TestWaitReadableTimeout(t *testing.T) {

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("[imap.TestWaitReadableTimeout] Failed to listen on loopback address: %s\n", err.Error())
	}
	defer listener.Close()

	go func() {

		// Accept and stay silent until the client gives up.
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		time.Sleep(500 * time.Millisecond)
	}()

	c := imap.NewConnection(nil)

	if !c.ConnectPlain("127.0.0.1", listenerPort(t, listener), imap.ProtocolAny, 2*time.Second) {
		t.Fatalf("[imap.TestWaitReadableTimeout] Expected successful connect but received: '%s'\n", c.LastError().Text)
	}
	defer c.Abort()

	assert.False(t, c.WaitReadable(100*time.Millisecond), "Waiting on a silent server should time out")
	assert.Equal(t, imap.ConnectionTimeout, c.LastError().Kind, "Failure should be classified as connection timeout")
	assert.True(t, c.IsConnected(), "A read timeout should not tear the connection down")
}

// TestConnectTLS checks the implicit TLS connect against
// a server using a freshly generated test certificate.
func TestConnectTLS(t *testing.T) {

	env, err := utils.CreateTestTLSEnv()
	if err != nil {
		t.Fatalf("[imap.TestConnectTLS] Failed to create test TLS environment: %s\n", err.Error())
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("[imap.TestConnectTLS] Failed to listen on loopback address: %s\n", err.Error())
	}
	defer listener.Close()

	go func() {

		conn, err := listener.Accept()
		if err != nil {
			return
		}

		tlsConn := tls.Server(conn, env.ServerTLSConfig)
		defer tlsConn.Close()

		fmt.Fprint(tlsConn, "* OK IMAP server ready\r\n")
	}()

	c := imap.NewConnection(env.ClientTLSConfig)

	if !c.ConnectTLS("127.0.0.1", listenerPort(t, listener), imap.ProtocolAny, 2*time.Second) {
		t.Fatalf("[imap.TestConnectTLS] Expected successful TLS connect but received: '%s'\n", c.LastError().Text)
	}
	defer c.Disconnect()

	assert.True(t, c.IsEncrypted(), "Implicit TLS connection should report encryption")
	assert.Equal(t, "* OK IMAP server ready\r\n", readLine(t, c, 2*time.Second), "Greeting should arrive over the encrypted connection")
}

// TestUpgradeTLS checks the in-place upgrade of a plain
// connection as performed after a confirmed STARTTLS.
func TestUpgradeTLS(t *testing.T) {

	env, err := utils.CreateTestTLSEnv()
	if err != nil {
		t.Fatalf("[imap.TestUpgradeTLS] Failed to create test TLS environment: %s\n", err.Error())
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("[imap.TestUpgradeTLS] Failed to listen on loopback address: %s\n", err.Error())
	}
	defer listener.Close()

	go func() {

		conn, err := listener.Accept()
		if err != nil {
			return
		}

		tlsConn := tls.Server(conn, env.ServerTLSConfig)
		defer tlsConn.Close()

		fmt.Fprint(tlsConn, "* OK upgraded\r\n")
	}()

	c := imap.NewConnection(env.ClientTLSConfig)

	if !c.ConnectPlain("127.0.0.1", listenerPort(t, listener), imap.ProtocolAny, 2*time.Second) {
		t.Fatalf("[imap.TestUpgradeTLS] Expected successful connect but received: '%s'\n", c.LastError().Text)
	}
	defer c.Disconnect()

	assert.False(t, c.IsEncrypted(), "Connection should start out unencrypted")

	if !c.UpgradeTLS() {
		t.Fatalf("[imap.TestUpgradeTLS] Expected successful TLS upgrade but received: '%s'\n", c.LastError().Text)
	}

	assert.True(t, c.IsEncrypted(), "Connection should report encryption after the upgrade")
	assert.Equal(t, "* OK upgraded\r\n", readLine(t, c, 2*time.Second), "Greeting should arrive over the upgraded connection")
}

// TestUpgradeTLSHandshakeFailure checks that a refused
// handshake aborts the connection.
func TestUpgradeTLSHandshakeFailure(t *testing.T) {

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("[imap.TestUpgradeTLSHandshakeFailure] Failed to listen on loopback address: %s\n", err.Error())
	}
	defer listener.Close()

	go func() {

		// Slam the door in the middle of the handshake.
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		conn.Close()
	}()

	c := imap.NewConnection(&tls.Config{ServerName: "localhost"})

	if !c.ConnectPlain("127.0.0.1", listenerPort(t, listener), imap.ProtocolAny, 2*time.Second) {
		t.Fatalf("[imap.TestUpgradeTLSHandshakeFailure] Expected successful connect but received: '%s'\n", c.LastError().Text)
	}

	assert.False(t, c.UpgradeTLS(), "Upgrade should fail when the handshake is refused")
	assert.Equal(t, imap.EncryptionError, c.LastError().Kind, "Failure should be classified as encryption error")
	assert.False(t, c.IsConnected(), "Connection should be torn down after a failed handshake")
}

// TestClosedConnectionOperations checks the guards on a
// connection that was never opened.
func TestClosedConnectionOperations(t *testing.T) {

	c := imap.NewConnection(nil)

	assert.False(t, c.IsConnected(), "Fresh connection should report closed state")
	assert.False(t, c.Write([]byte("ping\r\n")), "Write on closed connection must fail")
	assert.Equal(t, imap.SocketError, c.LastError().Kind, "Failure should be classified as socket error")
	assert.False(t, c.WaitReadable(time.Second), "Waiting on closed connection must fail")
	assert.False(t, c.UpgradeTLS(), "Upgrading closed connection must fail")

	// Teardown on a closed connection has nothing to do.
	c.Disconnect()
	c.Abort()
}

// TestConnectRefused checks classification of a dial
// failure against a port nobody listens on.
func TestConnectRefused(t *testing.T) {

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("[imap.TestConnectRefused] Failed to listen on loopback address: %s\n", err.Error())
	}

	// Grab a free port and release it again so the dial
	// finds nobody home.
	port := listenerPort(t, listener)
	listener.Close()

	c := imap.NewConnection(nil)

	assert.False(t, c.ConnectPlain("127.0.0.1", port, imap.ProtocolAny, 2*time.Second), "Connect to released port should fail")
	assert.Equal(t, imap.SocketError, c.LastError().Kind, "Refused connect should be classified as socket error")
}
