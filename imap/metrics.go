package imap

import (
	"github.com/go-kit/kit/metrics"
)

type metricsService struct {
	service  Service
	logins   metrics.Counter
	logouts  metrics.Counter
	commands metrics.Counter
}

// NewMetricsService wraps a provided existing service
// with the provided counters for successful logins and
// logouts and for issued provisioning commands.
func NewMetricsService(s Service, logins metrics.Counter, logouts metrics.Counter, commands metrics.Counter) Service {
	return &metricsService{
		service:  s,
		logins:   logins,
		logouts:  logouts,
		commands: commands,
	}
}

func (s *metricsService) Login() bool {

	ok := s.service.Login()

	if ok {
		s.logins.Add(1)
	}

	return ok
}

func (s *metricsService) Logout() bool {

	ok := s.service.Logout()

	if ok {
		s.logouts.Add(1)
	}

	return ok
}

func (s *metricsService) IsLoggedIn() bool {
	return s.service.IsLoggedIn()
}

func (s *metricsService) Capabilities(reload bool) []string {
	return s.service.Capabilities(reload)
}

func (s *metricsService) HasCapability(name string, reload bool) bool {
	return s.service.HasCapability(name, reload)
}

func (s *metricsService) Quota(username string) (uint64, uint64) {
	s.commands.Add(1)
	return s.service.Quota(username)
}

func (s *metricsService) SetQuota(username string, limitKiB uint64) bool {
	s.commands.Add(1)
	return s.service.SetQuota(username, limitKiB)
}

func (s *metricsService) CreateMailbox(username string) bool {
	s.commands.Add(1)
	return s.service.CreateMailbox(username)
}

func (s *metricsService) DeleteMailbox(username string) bool {
	s.commands.Add(1)
	return s.service.DeleteMailbox(username)
}

func (s *metricsService) CreateFolder(folder string, specialUse string) bool {
	s.commands.Add(1)
	return s.service.CreateFolder(folder, specialUse)
}

func (s *metricsService) SetACL(mailbox string, username string, acl string) bool {
	s.commands.Add(1)
	return s.service.SetACL(mailbox, username, acl)
}

func (s *metricsService) DeleteACL(mailbox string, username string) bool {
	s.commands.Add(1)
	return s.service.DeleteACL(mailbox, username)
}

func (s *metricsService) Mailboxes() []string {
	s.commands.Add(1)
	return s.service.Mailboxes()
}

func (s *metricsService) LastError() Error {
	return s.service.LastError()
}
