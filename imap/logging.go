package imap

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

type loggingService struct {
	logger  log.Logger
	service Service
}

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {
	return &loggingService{logger, s}
}

// logOutcome reports one finished operation with its
// result and, on failure, the recorded error.
func (s *loggingService) logOutcome(method string, ok bool, keyvals ...interface{}) {

	logger := log.With(s.logger, "method", method)
	logger = log.With(logger, keyvals...)

	if !ok {
		level.Info(logger).Log(
			"msg", "operation failed",
			"err", s.service.LastError().Text,
			"kind", s.service.LastError().Kind.String(),
		)
		return
	}

	level.Debug(logger).Log("msg", "operation succeeded")
}

// Login wraps this service's Login method with
// added logging capabilities.
func (s *loggingService) Login() bool {

	ok := s.service.Login()
	s.logOutcome("LOGIN", ok)

	return ok
}

// Logout wraps this service's Logout method with
// added logging capabilities.
func (s *loggingService) Logout() bool {

	ok := s.service.Logout()
	s.logOutcome("LOGOUT", ok)

	return ok
}

func (s *loggingService) IsLoggedIn() bool {
	return s.service.IsLoggedIn()
}

func (s *loggingService) Capabilities(reload bool) []string {
	return s.service.Capabilities(reload)
}

func (s *loggingService) HasCapability(name string, reload bool) bool {
	return s.service.HasCapability(name, reload)
}

// Quota wraps this service's Quota method with
// added logging capabilities.
func (s *loggingService) Quota(username string) (uint64, uint64) {

	used, limit := s.service.Quota(username)

	level.Debug(log.With(s.logger, "method", "GETQUOTA")).Log(
		"user", username,
		"used", used,
		"limit", limit,
	)

	return used, limit
}

// SetQuota wraps this service's SetQuota method with
// added logging capabilities.
func (s *loggingService) SetQuota(username string, limitKiB uint64) bool {

	ok := s.service.SetQuota(username, limitKiB)
	s.logOutcome("SETQUOTA", ok, "user", username, "limit", limitKiB)

	return ok
}

// CreateMailbox wraps this service's CreateMailbox
// method with added logging capabilities.
func (s *loggingService) CreateMailbox(username string) bool {

	ok := s.service.CreateMailbox(username)
	s.logOutcome("CREATE", ok, "user", username)

	return ok
}

// DeleteMailbox wraps this service's DeleteMailbox
// method with added logging capabilities.
func (s *loggingService) DeleteMailbox(username string) bool {

	ok := s.service.DeleteMailbox(username)
	s.logOutcome("DELETE", ok, "user", username)

	return ok
}

// CreateFolder wraps this service's CreateFolder
// method with added logging capabilities.
func (s *loggingService) CreateFolder(folder string, specialUse string) bool {

	ok := s.service.CreateFolder(folder, specialUse)
	s.logOutcome("CREATE FOLDER", ok, "folder", folder, "use", specialUse)

	return ok
}

// SetACL wraps this service's SetACL method with
// added logging capabilities.
func (s *loggingService) SetACL(mailbox string, username string, acl string) bool {

	ok := s.service.SetACL(mailbox, username, acl)
	s.logOutcome("SETACL", ok, "mailbox", mailbox, "user", username)

	return ok
}

// DeleteACL wraps this service's DeleteACL method
// with added logging capabilities.
func (s *loggingService) DeleteACL(mailbox string, username string) bool {

	ok := s.service.DeleteACL(mailbox, username)
	s.logOutcome("DELETEACL", ok, "mailbox", mailbox, "user", username)

	return ok
}

func (s *loggingService) Mailboxes() []string {
	return s.service.Mailboxes()
}

func (s *loggingService) LastError() Error {
	return s.service.LastError()
}
