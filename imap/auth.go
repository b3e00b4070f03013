package imap

import (
	"fmt"
	"strings"

	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
)

// Interfaces

// Authenticator defines the contract one SASL or login
// mechanism has to fulfill in order to move a session
// from connected into authenticated state. Implementations
// run their challenge/response sub-protocol over the
// session's connection and leave the session's last error
// populated on failure.
type Authenticator interface {

	// Mechanism returns the IMAP name of this
	// authentication mechanism.
	Mechanism() string

	// Authenticate performs the credential exchange
	// for the supplied user on the given session.
	Authenticate(s *session, username string, password string) bool
}

// Structs

type loginAuthenticator struct{}

type saslLoginAuthenticator struct{}

type saslPlainAuthenticator struct{}

type cramMD5Authenticator struct{}

// Functions

// selectAuthenticator picks the strongest mechanism the
// server advertises, strongest first: CRAM-MD5, PLAIN,
// LOGIN, and as last resort the plaintext LOGIN command.
// A non-empty preference overrides the negotiation and
// fails if the name is not a supported mechanism.
func selectAuthenticator(caps []string, preference string) (Authenticator, error) {

	if preference != "" {

		switch strings.ToUpper(preference) {
		case "CRAM-MD5":
			return cramMD5Authenticator{}, nil
		case "PLAIN":
			return saslPlainAuthenticator{}, nil
		case "LOGIN":
			return saslLoginAuthenticator{}, nil
		case "CLEAR":
			return loginAuthenticator{}, nil
		default:
			return nil, fmt.Errorf("unsupported authentication mechanism '%s'", preference)
		}
	}

	capSet := make(map[string]bool)
	for _, capability := range caps {
		capSet[capability] = true
	}

	if capSet["AUTH=CRAM-MD5"] {
		return cramMD5Authenticator{}, nil
	}

	if capSet["AUTH=PLAIN"] {
		return saslPlainAuthenticator{}, nil
	}

	if capSet["AUTH=LOGIN"] {
		return saslLoginAuthenticator{}, nil
	}

	return loginAuthenticator{}, nil
}

func (a loginAuthenticator) Mechanism() string {
	return "CLEAR"
}

// Authenticate sends the plaintext LOGIN command with both
// credentials as quoted strings. Because the quoting is not
// escaped in any way, credentials containing quote or
// backslash characters are rejected up front instead of
// being written to the wire.
func (a loginAuthenticator) Authenticate(s *session, username string, password string) bool {

	if strings.ContainsAny(username, "\"\\") || strings.ContainsAny(password, "\"\\") {
		s.lastErr = newError(ConfigError, s.translate("credentials must not contain quote or backslash characters when using the LOGIN command"))
		return false
	}

	resp := s.exchange(fmt.Sprintf("LOGIN \"%s\" \"%s\"", username, password))

	return resp.OK()
}

func (a saslLoginAuthenticator) Mechanism() string {
	return "LOGIN"
}

// Authenticate performs the SASL LOGIN exchange: user name
// and password each as one base64 continuation line.
func (a saslLoginAuthenticator) Authenticate(s *session, username string, password string) bool {

	tag := s.nextTag()

	if !s.sendCommand(tag, "AUTHENTICATE LOGIN") {
		return false
	}

	if _, ok := s.readContinuation(); !ok {
		return false
	}

	if !s.sendContinuation(base64.StdEncoding.EncodeToString([]byte(username))) {
		return false
	}

	if _, ok := s.readContinuation(); !ok {
		return false
	}

	if !s.sendContinuation(base64.StdEncoding.EncodeToString([]byte(password))) {
		return false
	}

	return s.finishAuth(tag)
}

func (a saslPlainAuthenticator) Mechanism() string {
	return "PLAIN"
}

// Authenticate performs the SASL PLAIN exchange with one
// continuation line carrying NUL user NUL password.
func (a saslPlainAuthenticator) Authenticate(s *session, username string, password string) bool {

	tag := s.nextTag()

	if !s.sendCommand(tag, "AUTHENTICATE PLAIN") {
		return false
	}

	if _, ok := s.readContinuation(); !ok {
		return false
	}

	blob := base64.StdEncoding.EncodeToString([]byte("\x00" + username + "\x00" + password))
	if !s.sendContinuation(blob) {
		return false
	}

	return s.finishAuth(tag)
}

func (a cramMD5Authenticator) Mechanism() string {
	return "CRAM-MD5"
}

// Authenticate performs the CRAM-MD5 exchange: the server
// challenge arrives base64 encoded on the continuation
// line and is answered with user name and the lowercase
// hex HMAC-MD5 of the challenge keyed by the password.
func (a cramMD5Authenticator) Authenticate(s *session, username string, password string) bool {

	tag := s.nextTag()

	if !s.sendCommand(tag, "AUTHENTICATE CRAM-MD5") {
		return false
	}

	challenge, ok := s.readContinuation()
	if !ok {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(challenge)
	if err != nil {
		s.lastErr = newError(ResponseError, s.translate(fmt.Sprintf("failed to decode CRAM-MD5 challenge: %v", err)))
		s.conn.Abort()
		return false
	}

	answer := fmt.Sprintf("%s %s", username, cramMD5Digest(password, decoded))
	if !s.sendContinuation(base64.StdEncoding.EncodeToString([]byte(answer))) {
		return false
	}

	return s.finishAuth(tag)
}

// cramMD5Digest computes the lowercase hex HMAC-MD5 of the
// supplied challenge keyed with the password.
func cramMD5Digest(password string, challenge []byte) string {

	mac := hmac.New(md5.New, []byte(password))
	mac.Write(challenge)

	return hex.EncodeToString(mac.Sum(nil))
}
