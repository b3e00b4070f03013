package imap

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	uuid "github.com/satori/go.uuid"
)

// Constants

// Default bounded time to wait for the answer to
// one issued command.
const DefaultTimeout = 30 * time.Second

// Version string sent to servers supporting the
// ID extension.
const clientVersion = "0.1.0"

// Interfaces

// Service defines the provisioning operations the
// account management layer performs against an IMAP
// server. One Service value drives exactly one
// connection and must not be shared between
// goroutines, use one Service per goroutine instead.
type Service interface {

	// Login connects to the configured server, upgrades
	// transport security if requested, authenticates the
	// administrative user and performs capability
	// discovery. Calling it on an already authenticated
	// session succeeds immediately.
	Login() bool

	// Logout ends the session with a best-effort LOGOUT
	// command and tears down the connection. It is a
	// no-op on a session that is not logged in.
	Logout() bool

	// IsLoggedIn reports whether the session currently
	// is in authenticated state.
	IsLoggedIn() bool

	// Capabilities returns the server's capability set,
	// loading it from the server if the cache is empty
	// or a reload is forced.
	Capabilities(reload bool) []string

	// HasCapability checks the optionally reloaded
	// capability set for one upper-case token.
	HasCapability(name string, reload bool) bool

	// Quota returns used and limit storage in KiB for
	// the supplied user's quota root. A missing quota
	// root yields zero values without an error.
	Quota(username string) (uint64, uint64)

	// SetQuota puts a storage limit in KiB onto the
	// supplied user's quota root.
	SetQuota(username string, limitKiB uint64) bool

	// CreateMailbox creates the mailbox of the
	// supplied user.
	CreateMailbox(username string) bool

	// DeleteMailbox removes the mailbox of the
	// supplied user.
	DeleteMailbox(username string) bool

	// CreateFolder creates and subscribes a folder
	// below INBOX, optionally flagged with a
	// special-use attribute such as \Drafts.
	CreateFolder(folder string, specialUse string) bool

	// SetACL grants the supplied rights string on a
	// user's mailbox.
	SetACL(mailbox string, username string, acl string) bool

	// DeleteACL revokes all rights of the supplied
	// user on a mailbox.
	DeleteACL(mailbox string, username string) bool

	// Mailboxes lists the child mailboxes below the
	// user namespace.
	Mailboxes() []string

	// LastError returns the failure recorded by the
	// most recent unsuccessful operation.
	LastError() Error
}

// Structs

// Options bundles everything a session needs to reach
// and authenticate against one IMAP server. All inputs
// are passed in explicitly, a session never consults
// any ambient state.
type Options struct {
	Host             string
	Port             uint16
	Protocol         Protocol
	Encryption       Encryption
	TLSConfig        *tls.Config
	User             string
	Password         string
	Mechanism        string
	UnixHierarchySep bool
	Timeout          time.Duration
	Translate        Translator
}

// session tracks the state of one connection to an
// IMAP server: the tag sequence, the authentication
// state, the capability cache and the last error. All
// of this state is owned per session, never shared
// process-wide.
type session struct {
	logger    log.Logger
	opts      Options
	conn      *Connection
	tagSeq    uint64
	loggedIn  bool
	caps      []string
	lastErr   Error
	sessionID string
}

// Functions

// NewService creates a new session for the supplied
// server options. No connection is made before Login
// is called.
func NewService(logger log.Logger, opts Options) Service {

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.Translate == nil {
		opts.Translate = identity
	}

	return &session{
		logger: logger,
		opts:   opts,
		conn:   NewConnection(opts.TLSConfig),
	}
}

// translate runs the configured translator over an
// error text.
func (s *session) translate(text string) string {
	return s.opts.Translate(text)
}

// sep returns the configured hierarchy separator,
// netnews style dots by default, UNIX style slashes
// on request.
func (s *session) sep() string {

	if s.opts.UnixHierarchySep {
		return "/"
	}

	return "."
}

// nextTag increments the session's tag sequence and
// renders it as zero-padded command tag.
func (s *session) nextTag() string {

	s.tagSeq++

	return fmt.Sprintf("a%06d", s.tagSeq)
}

// sendCommand writes one tagged command line to the
// server.
func (s *session) sendCommand(tag string, command string) bool {

	if !s.conn.Write([]byte(tag + " " + command + "\r\n")) {
		s.lastErr = s.conn.LastError()
		return false
	}

	return true
}

// sendContinuation writes one bare continuation line,
// used for base64 blobs during authentication.
func (s *session) sendContinuation(data string) bool {

	if !s.conn.Write([]byte(data + "\r\n")) {
		s.lastErr = s.conn.LastError()
		return false
	}

	return true
}

// receive collects raw bytes from the connection until
// the answer to the supplied tag is complete and parses
// it. An empty tag accepts any complete line, as needed
// for the initial greeting. A timeout aborts the
// connection, there is no half-open state to keep.
func (s *session) receive(tag string) Response {

	var buf []byte

	for {

		if !s.conn.WaitReadable(s.opts.Timeout) {
			s.lastErr = s.conn.LastError()
			s.conn.Abort()
			return Response{Status: StatusUndefined, Err: s.lastErr}
		}

		buf = append(buf, s.conn.Read()...)

		if responseComplete(buf, tag) {
			break
		}
	}

	resp := ParseResponse(buf, tag)
	if !resp.OK() {
		s.lastErr = resp.Err
	}

	return resp
}

// exchange runs one full tagged command round-trip.
func (s *session) exchange(command string) Response {

	tag := s.nextTag()

	if !s.sendCommand(tag, command) {
		return Response{Status: StatusUndefined, Err: s.lastErr}
	}

	return s.receive(tag)
}

// readContinuation awaits one continuation line from the
// server. Any answer not starting with '+' aborts the
// running authentication exchange and disconnects.
func (s *session) readContinuation() (string, bool) {

	var buf []byte

	for {

		if !s.conn.WaitReadable(s.opts.Timeout) {
			s.lastErr = s.conn.LastError()
			s.conn.Abort()
			return "", false
		}

		buf = append(buf, s.conn.Read()...)

		if bytes.HasSuffix(buf, []byte("\n")) {
			break
		}
	}

	line := strings.Trim(string(buf), " \t\r\n")

	if !strings.HasPrefix(line, "+") {
		s.lastErr = newError(ResponseError, s.translate(fmt.Sprintf("expected continuation from server but received '%s'", line)))
		s.conn.Abort()
		return "", false
	}

	return strings.TrimSpace(strings.TrimPrefix(line, "+")), true
}

// finishAuth consumes the final tagged answer of an
// authentication exchange.
func (s *session) finishAuth(tag string) bool {
	return s.receive(tag).OK()
}

// Login implements the connect, STARTTLS, authenticate
// and capability discovery sequence. Any failure on the
// way tears the connection down and records the reason,
// no half-open session is left behind.
func (s *session) Login() bool {

	if s.loggedIn {
		return true
	}

	if !s.connect() {
		return false
	}

	// The server opens the conversation with an
	// unsolicited greeting that has to parse as OK.
	greeting := s.receive("")
	if !greeting.OK() {

		if !greeting.Err.IsError() {
			s.lastErr = newError(UndefinedResponse, s.translate("server greeting was not recognized"))
		}

		s.conn.Disconnect()
		return false
	}

	if s.opts.Encryption == EncryptionStartTLS {
		if !s.startTLS() {
			s.conn.Disconnect()
			return false
		}
	}

	caps := s.Capabilities(true)
	if caps == nil && s.lastErr.IsError() {
		s.conn.Disconnect()
		return false
	}

	auth, err := selectAuthenticator(caps, s.opts.Mechanism)
	if err != nil {
		s.lastErr = newError(ConfigError, s.translate(err.Error()))
		s.conn.Disconnect()
		return false
	}

	if !auth.Authenticate(s, s.opts.User, s.opts.Password) {

		if !s.lastErr.IsError() {
			s.lastErr = newError(ResponseError, s.translate("authentication failed"))
		}

		s.conn.Disconnect()
		return false
	}

	s.loggedIn = true
	s.sessionID = uuid.NewV4().String()
	s.logger = log.With(s.logger, "session", s.sessionID)

	// Identifying ourselves is cosmetic metadata, a
	// failure here never fails the login.
	if s.HasCapability("ID", false) {

		if resp := s.exchange(fmt.Sprintf("ID (\"name\" \"skaffari-imap\" \"version\" \"%s\")", clientVersion)); !resp.OK() {
			level.Debug(s.logger).Log(
				"msg", "server rejected client identification",
				"err", resp.Err.Text,
			)
			s.lastErr = Error{}
		}
	}

	level.Info(s.logger).Log(
		"msg", "logged in to IMAP server",
		"host", s.opts.Host,
		"mechanism", auth.Mechanism(),
	)

	return true
}

// connect dials the server according to the configured
// encryption mode.
func (s *session) connect() bool {

	var ok bool

	switch s.opts.Encryption {
	case EncryptionTLS:
		ok = s.conn.ConnectTLS(s.opts.Host, s.opts.Port, s.opts.Protocol, s.opts.Timeout)
	default:
		ok = s.conn.ConnectPlain(s.opts.Host, s.opts.Port, s.opts.Protocol, s.opts.Timeout)
	}

	if !ok {
		s.lastErr = s.conn.LastError()
	}

	return ok
}

// startTLS negotiates the in-place upgrade to TLS. The
// capability set must advertise STARTTLS, otherwise no
// handshake is ever attempted.
func (s *session) startTLS() bool {

	if !s.HasCapability("STARTTLS", true) {

		if !s.lastErr.IsError() {
			s.lastErr = newError(EncryptionError, s.translate("STARTTLS is not supported by the server"))
		}

		return false
	}

	if !s.exchange("STARTTLS").OK() {
		return false
	}

	if !s.conn.UpgradeTLS() {
		s.lastErr = s.conn.LastError()
		return false
	}

	// The old capability set described the plaintext
	// connection and must not survive the upgrade.
	s.caps = nil

	return true
}

// Logout sends a best-effort LOGOUT, tears down the
// connection and resets the tag sequence. A session that
// never logged in or already logged out is left alone.
func (s *session) Logout() bool {

	if !s.loggedIn && !s.conn.IsConnected() {
		return true
	}

	if s.loggedIn {

		// The server's answer does not matter, the goal
		// is releasing our resources, not protocol purity.
		if resp := s.exchange("LOGOUT"); !resp.OK() {
			level.Debug(s.logger).Log(
				"msg", "server did not confirm LOGOUT",
				"err", resp.Err.Text,
			)
		}
	}

	s.conn.Disconnect()
	s.tagSeq = 0
	s.loggedIn = false
	s.caps = nil
	s.lastErr = Error{}

	return true
}

// IsLoggedIn reports whether the session reached
// authenticated state.
func (s *session) IsLoggedIn() bool {
	return s.loggedIn
}

// Capabilities returns the cached capability set or
// reloads it from the server. Tokens are upper-cased
// and the literal CAPABILITY token is dropped.
func (s *session) Capabilities(reload bool) []string {

	if len(s.caps) > 0 && !reload {
		return s.caps
	}

	resp := s.exchange("CAPABILITY")
	if !resp.OK() {
		return nil
	}

	if len(resp.Lines) == 0 {
		s.lastErr = newError(ResponseError, s.translate("CAPABILITY answer carried no capability line"))
		return nil
	}

	var caps []string
	for _, token := range strings.Fields(resp.Lines[0]) {

		token = strings.ToUpper(token)
		if token == "CAPABILITY" {
			continue
		}

		caps = append(caps, token)
	}

	s.caps = caps

	return s.caps
}

// HasCapability checks the optionally reloaded
// capability set for the supplied token.
func (s *session) HasCapability(name string, reload bool) bool {

	for _, capability := range s.Capabilities(reload) {
		if capability == strings.ToUpper(name) {
			return true
		}
	}

	return false
}

// Quota queries the supplied user's quota root and scans
// the answer for the STORAGE resource. A quota root
// without storage data is a legitimate server state and
// yields zero values without raising an error.
func (s *session) Quota(username string) (uint64, uint64) {

	if !s.ensureLoggedIn() {
		return 0, 0
	}

	resp := s.exchange(fmt.Sprintf("GETQUOTA \"user%s%s\"", s.sep(), username))
	if !resp.OK() {
		return 0, 0
	}

	used, limit, found := parseQuota(resp.Lines)
	if !found {
		level.Warn(s.logger).Log(
			"msg", "quota answer carried no STORAGE resource",
			"user", username,
		)
	}

	return used, limit
}

// SetQuota puts a storage limit in KiB onto the supplied
// user's quota root.
func (s *session) SetQuota(username string, limitKiB uint64) bool {

	if !s.ensureLoggedIn() {
		return false
	}

	return s.exchange(fmt.Sprintf("SETQUOTA \"user%s%s\" (STORAGE %d)", s.sep(), username, limitKiB)).OK()
}

// CreateMailbox creates the mailbox of the supplied user.
func (s *session) CreateMailbox(username string) bool {

	if !s.ensureLoggedIn() {
		return false
	}

	return s.exchange(fmt.Sprintf("CREATE \"user%s%s\"", s.sep(), username)).OK()
}

// DeleteMailbox removes the mailbox of the supplied user.
func (s *session) DeleteMailbox(username string) bool {

	if !s.ensureLoggedIn() {
		return false
	}

	return s.exchange(fmt.Sprintf("DELETE \"user%s%s\"", s.sep(), username)).OK()
}

// CreateFolder creates one folder below INBOX and
// subscribes it. The supplied name is converted into
// modified UTF-7 first. A special-use attribute is only
// attached when the server advertises SPECIAL-USE.
func (s *session) CreateFolder(folder string, specialUse string) bool {

	if !s.ensureLoggedIn() {
		return false
	}

	encoded, err := encodeFolderName(folder)
	if err != nil {
		s.lastErr = newError(InternalError, s.translate(fmt.Sprintf("failed to convert folder name '%s' into UTF-7-IMAP", folder)))
		return false
	}

	create := fmt.Sprintf("CREATE \"INBOX%s%s\"", s.sep(), encoded)
	if specialUse != "" && s.HasCapability("SPECIAL-USE", false) {
		create = fmt.Sprintf("%s (USE (%s))", create, specialUse)
	}

	if !s.exchange(create).OK() {
		return false
	}

	return s.exchange(fmt.Sprintf("SUBSCRIBE \"INBOX%s%s\"", s.sep(), encoded)).OK()
}

// SetACL grants the supplied rights string to a user on
// another user's mailbox.
func (s *session) SetACL(mailbox string, username string, acl string) bool {

	if !s.ensureLoggedIn() {
		return false
	}

	return s.exchange(fmt.Sprintf("SETACL \"user%s%s\" \"%s\" %s", s.sep(), mailbox, username, acl)).OK()
}

// DeleteACL revokes all rights of the supplied user on
// another user's mailbox.
func (s *session) DeleteACL(mailbox string, username string) bool {

	if !s.ensureLoggedIn() {
		return false
	}

	return s.exchange(fmt.Sprintf("DELETEACL \"user%s%s\" \"%s\"", s.sep(), mailbox, username)).OK()
}

// Mailboxes lists the mailboxes one hierarchy level below
// the user namespace and strips the namespace prefix from
// each answer line.
func (s *session) Mailboxes() []string {

	if !s.ensureLoggedIn() {
		return nil
	}

	resp := s.exchange(fmt.Sprintf("LIST \"user%s\" %%", s.sep()))
	if !resp.OK() {
		return nil
	}

	prefix := "user" + s.sep()

	var boxes []string
	for _, line := range resp.Lines {

		idx := strings.LastIndex(line, prefix)
		if idx < 0 {
			continue
		}

		name := strings.Trim(line[idx+len(prefix):], " \"")
		if name != "" {
			boxes = append(boxes, name)
		}
	}

	return boxes
}

// LastError returns the failure recorded by the most
// recent unsuccessful operation.
func (s *session) LastError() Error {
	return s.lastErr
}

// ensureLoggedIn guards provisioning commands against
// use outside of authenticated state.
func (s *session) ensureLoggedIn() bool {

	if !s.loggedIn {
		s.lastErr = newError(InternalError, s.translate("operation requires an authenticated session"))
		return false
	}

	return true
}

// responseComplete reports whether the collected raw bytes
// form a complete answer: they end in a newline and, when
// a tag is expected, contain a tagged status line. Any line
// that is neither untagged nor a continuation counts as the
// status line, even when it carries an unexpected tag. The
// classification of such a mismatch is left to ParseResponse
// instead of waiting for a matching line that never comes.
func responseComplete(buf []byte, tag string) bool {

	if !bytes.HasSuffix(buf, []byte("\n")) {
		return false
	}

	if tag == "" {
		return true
	}

	for _, line := range strings.Split(string(buf), "\n") {

		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ") {
			continue
		}

		return true
	}

	return false
}

// parseQuota scans answer lines of a GETQUOTA command for
// the STORAGE resource and returns the two integers
// following it. The scan tokenizes instead of assuming
// fixed offsets so that extra whitespace or additional
// resources do not break it.
func parseQuota(lines []string) (uint64, uint64, bool) {

	for _, line := range lines {

		line = strings.NewReplacer("(", " ", ")", " ").Replace(line)
		tokens := strings.Fields(line)

		for i, token := range tokens {

			if !strings.EqualFold(token, "STORAGE") || (i+2) >= len(tokens) {
				continue
			}

			used, err := strconv.ParseUint(tokens[i+1], 10, 64)
			if err != nil {
				continue
			}

			limit, err := strconv.ParseUint(tokens[i+2], 10, 64)
			if err != nil {
				continue
			}

			return used, limit, true
		}
	}

	return 0, 0, false
}
