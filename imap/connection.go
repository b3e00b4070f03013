package imap

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"time"

	"crypto/tls"
)

// Constants

// Integer counter for the network protocol
// preference used when dialing.
const (
	ProtocolAny Protocol = iota
	ProtocolIPv4
	ProtocolIPv6
)

// Integer counter for the connection security
// requested from the server.
const (
	EncryptionNone Encryption = iota
	EncryptionStartTLS
	EncryptionTLS
)

// Bounded time a graceful disconnect is allowed
// to take before the connection is torn down hard.
const disconnectTimeout = 5 * time.Second

// Structs

// Protocol represents the integer value associated
// with one of the supported dial preferences.
type Protocol int

// Encryption represents the integer value associated
// with one of the supported transport security modes.
type Encryption int

// Connection carries all information specific to one
// stream connection to an IMAP server, plain or TLS.
// It hands out raw bytes and leaves all framing and
// correlation to the calling session.
type Connection struct {
	conn      net.Conn
	reader    *bufio.Reader
	tlsConfig *tls.Config
	encrypted bool
	lastErr   Error
}

// Functions

// Network maps a dial preference onto the network
// string understood by the net package.
func (p Protocol) Network() string {

	switch p {
	case ProtocolIPv4:
		return "tcp4"
	case ProtocolIPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

// NewConnection creates a new element of above connection
// struct. The supplied TLS config is used for implicit
// TLS connects as well as for STARTTLS upgrades and may
// be nil when only plaintext connections are made.
func NewConnection(tlsConfig *tls.Config) *Connection {

	return &Connection{
		tlsConfig: tlsConfig,
	}
}

// ConnectPlain dials the supplied host and port without
// any transport security. It blocks until the connection
// is established or the supplied timeout elapsed.
func (c *Connection) ConnectPlain(host string, port uint16, proto Protocol, timeout time.Duration) bool {

	dialer := &net.Dialer{Timeout: timeout}

	conn, err := dialer.Dial(proto.Network(), net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		c.lastErr = dialError(err)
		return false
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.encrypted = false
	c.lastErr = Error{}

	return true
}

// ConnectTLS dials the supplied host and port and performs
// the TLS handshake in one step. Handshake failures abort
// the connection and surface the underlying certificate or
// handshake message.
func (c *Connection) ConnectTLS(host string, port uint16, proto Protocol, timeout time.Duration) bool {

	dialer := &net.Dialer{Timeout: timeout}

	conn, err := tls.DialWithDialer(dialer, proto.Network(), net.JoinHostPort(host, strconv.Itoa(int(port))), c.tlsConfig)
	if err != nil {

		if nErr, ok := err.(net.Error); ok && nErr.Timeout() {
			c.lastErr = newError(ConnectionTimeout, fmt.Sprintf("connecting to %s timed out: %v", host, err))
		} else {
			c.lastErr = newError(EncryptionError, fmt.Sprintf("TLS connect to %s failed: %v", host, err))
		}

		return false
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.encrypted = true
	c.lastErr = Error{}

	return true
}

// UpgradeTLS begins an in-place TLS handshake on an already
// open plaintext connection as used by the STARTTLS flow.
// A handshake that returns without reaching the encrypted
// client state is treated as an encryption failure and the
// connection is aborted.
func (c *Connection) UpgradeTLS() bool {

	if c.conn == nil {
		c.lastErr = newError(SocketError, "cannot upgrade a closed connection to TLS")
		return false
	}

	tlsConn := tls.Client(c.conn, c.tlsConfig)

	if err := tlsConn.Handshake(); err != nil {
		c.lastErr = newError(EncryptionError, fmt.Sprintf("STARTTLS handshake failed: %v", err))
		c.Abort()
		return false
	}

	// Confirm that the handshake actually left us on an
	// encrypted connection before trusting it.
	if !tlsConn.ConnectionState().HandshakeComplete {
		c.lastErr = newError(EncryptionError, "connection did not reach the encrypted state after STARTTLS handshake")
		c.Abort()
		return false
	}

	c.conn = tlsConn
	c.reader = bufio.NewReader(tlsConn)
	c.encrypted = true
	c.lastErr = Error{}

	return true
}

// Write sends the supplied bytes to the server and fails
// if not all of them were accepted.
func (c *Connection) Write(p []byte) bool {

	if c.conn == nil {
		c.lastErr = newError(SocketError, "write on closed connection")
		return false
	}

	if _, err := c.conn.Write(p); err != nil {
		c.lastErr = newError(SocketError, fmt.Sprintf("write to server failed: %v", err))
		return false
	}

	return true
}

// WaitReadable blocks until at least one byte can be read
// from the server or the supplied timeout elapsed.
func (c *Connection) WaitReadable(timeout time.Duration) bool {

	if c.conn == nil {
		c.lastErr = newError(SocketError, "wait on closed connection")
		return false
	}

	c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, err := c.reader.Peek(1)
	c.conn.SetReadDeadline(time.Time{})

	if err != nil {

		if nErr, ok := err.(net.Error); ok && nErr.Timeout() {
			c.lastErr = newError(ConnectionTimeout, "timeout while waiting for a response from the server")
		} else {
			c.lastErr = newError(SocketError, fmt.Sprintf("connection broke while waiting for a response: %v", err))
		}

		return false
	}

	return true
}

// Read returns all bytes currently available on the
// connection without blocking for more.
func (c *Connection) Read() []byte {

	if c.conn == nil {
		return nil
	}

	var out []byte
	buf := make([]byte, 4096)

	for {

		if c.reader.Buffered() == 0 {

			// Only pick up bytes the kernel already
			// holds for us, never block here.
			c.conn.SetReadDeadline(time.Now())
			_, err := c.reader.Peek(1)
			c.conn.SetReadDeadline(time.Time{})

			if err != nil {
				break
			}
		}

		n, err := c.reader.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}

		if err != nil {
			break
		}
	}

	return out
}

// Disconnect requests a graceful close of the connection
// and waits a bounded time for the peer to confirm it. The
// write side is shut down first and pending bytes are
// drained until the peer answers with its own close. If
// that does not work out within the bound the connection
// is aborted instead. Calling it on an already closed
// connection is a no-op.
func (c *Connection) Disconnect() {

	if c.conn == nil {
		return
	}

	c.conn.SetDeadline(time.Now().Add(disconnectTimeout))

	type closeWriter interface {
		CloseWrite() error
	}

	if cw, ok := c.conn.(closeWriter); ok && cw.CloseWrite() == nil {

		// The deadline set above caps how long the peer
		// may take to send its remaining bytes and EOF.
		buf := make([]byte, 4096)
		for {
			if _, err := c.reader.Read(buf); err != nil {
				break
			}
		}
	}

	if err := c.conn.Close(); err != nil {
		c.Abort()
		return
	}

	c.reset()
}

// Abort tears the connection down without waiting for any
// close confirmation from the peer.
func (c *Connection) Abort() {

	if c.conn == nil {
		return
	}

	if tcpConn, ok := c.conn.(*net.TCPConn); ok {
		tcpConn.SetLinger(0)
	}

	c.conn.Close()
	c.reset()
}

// IsEncrypted reports whether the connection currently
// runs over TLS.
func (c *Connection) IsEncrypted() bool {
	return c.encrypted
}

// IsConnected reports whether an open connection to the
// server exists.
func (c *Connection) IsConnected() bool {
	return c.conn != nil
}

// LastError returns the last failure recorded on this
// connection.
func (c *Connection) LastError() Error {
	return c.lastErr
}

// reset clears all connection state after teardown.
func (c *Connection) reset() {
	c.conn = nil
	c.reader = nil
	c.encrypted = false
}

// dialError classifies a dial failure into the matching
// failure category.
func dialError(err error) Error {

	if nErr, ok := err.(net.Error); ok && nErr.Timeout() {
		return newError(ConnectionTimeout, fmt.Sprintf("connection attempt timed out: %v", err))
	}

	return newError(SocketError, fmt.Sprintf("connection attempt failed: %v", err))
}
