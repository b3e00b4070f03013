package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"crypto/tls"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/huessenbergnetz/skaffari-imap/config"
	"github.com/huessenbergnetz/skaffari-imap/crypto"
	"github.com/huessenbergnetz/skaffari-imap/imap"
)

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// initTLSConfig builds the client TLS config for the
// configured encryption mode, nil when running without
// transport security.
func initTLSConfig(conf *config.Config) (*tls.Config, error) {

	if conf.Server.Encryption == "none" {
		return nil, nil
	}

	peerName := conf.Server.PeerName
	if peerName == "" {
		peerName = conf.Server.Host
	}

	return crypto.NewClientTLSConfig(peerName, conf.Server.RootCertLoc)
}

// initOptions maps the loaded configuration onto the
// session options of the imap package.
func initOptions(conf *config.Config, tlsConfig *tls.Config) imap.Options {

	proto := imap.ProtocolAny
	switch conf.Server.Protocol {
	case "ipv4":
		proto = imap.ProtocolIPv4
	case "ipv6":
		proto = imap.ProtocolIPv6
	}

	enc := imap.EncryptionStartTLS
	switch conf.Server.Encryption {
	case "none":
		enc = imap.EncryptionNone
	case "tls":
		enc = imap.EncryptionTLS
	}

	return imap.Options{
		Host:             conf.Server.Host,
		Port:             conf.Server.Port,
		Protocol:         proto,
		Encryption:       enc,
		TLSConfig:        tlsConfig,
		User:             conf.Admin.User,
		Password:         conf.Admin.Password,
		Mechanism:        conf.Admin.Mechanism,
		UnixHierarchySep: conf.IMAP.UnixHierarchySep,
		Timeout:          time.Duration(conf.Server.TimeoutMs) * time.Millisecond,
	}
}

func main() {

	// Parse command-line flags defining config paths
	// and the provisioning operations to perform.
	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	envFlag := flag.String("env", "", "Optionally provide path to a .env file carrying the administrative credentials.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	createFlag := flag.String("create-account", "", "Create the mailbox for this user, set its quota and create the configured default folders.")
	deleteFlag := flag.String("delete-account", "", "Delete the mailbox of this user.")
	quotaFlag := flag.String("quota", "", "Print used and available storage in KiB for this user.")
	setQuotaFlag := flag.String("set-quota", "", "Set the storage quota for this user to the value of -quota-limit.")
	quotaLimitFlag := flag.Uint64("quota-limit", 0, "Storage quota limit in KiB applied by -set-quota and -create-account.")
	foldersFlag := flag.Bool("create-folders", false, "Create and subscribe the default folders configured for new accounts.")
	listFlag := flag.Bool("list", false, "List the mailboxes below the user namespace.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config",
			"err", err,
		)
		os.Exit(1)
	}

	// Overlay credentials from the .env file.
	if *envFlag != "" {

		env, err := config.LoadEnv(*envFlag)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to load the .env file",
				"err", err,
			)
			os.Exit(1)
		}

		env.Apply(conf)
	}

	tlsConfig, err := initTLSConfig(conf)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to prepare the TLS configuration",
			"err", err,
		)
		os.Exit(1)
	}

	metrics := NewClientMetrics(conf.Metrics.PrometheusAddr)
	go runPromHTTP(logger, conf.Metrics.PrometheusAddr)

	// Assemble the session with metrics and logging
	// wrapped around it.
	var service imap.Service
	service = imap.NewService(logger, initOptions(conf, tlsConfig))
	service = imap.NewMetricsService(service, metrics.Session.Logins, metrics.Session.Logouts, metrics.Session.Commands)
	service = imap.NewLoggingService(service, logger)

	if !service.Login() {
		level.Error(logger).Log(
			"msg", "failed to log in to the IMAP server",
			"err", service.LastError().Text,
		)
		os.Exit(2)
	}
	defer service.Logout()

	ok := true

	if *createFlag != "" {
		ok = createAccount(logger, service, conf, *createFlag, *quotaLimitFlag) && ok
	}

	if *deleteFlag != "" {
		ok = deleteAccount(service, conf, *deleteFlag) && ok
	}

	if *setQuotaFlag != "" {
		ok = service.SetQuota(*setQuotaFlag, *quotaLimitFlag) && ok
	}

	if *quotaFlag != "" {
		used, limit := service.Quota(*quotaFlag)
		fmt.Printf("%s: %d KiB used of %d KiB\n", *quotaFlag, used, limit)
	}

	if *foldersFlag {
		ok = createDefaultFolders(service, conf) && ok
	}

	if *listFlag {
		for _, mailbox := range service.Mailboxes() {
			fmt.Println(mailbox)
		}
	}

	if !ok {
		level.Error(logger).Log(
			"msg", "at least one provisioning operation failed",
			"err", service.LastError().Text,
		)
		service.Logout()
		os.Exit(3)
	}
}

// createAccount provisions one fresh account: mailbox,
// administrative rights, optional quota and the configured
// default folders. The rights are revoked again at the end,
// a failing revocation leaves a working account behind and
// is only logged.
func createAccount(logger log.Logger, service imap.Service, conf *config.Config, username string, limitKiB uint64) bool {

	if !service.CreateMailbox(username) {
		return false
	}

	if !service.SetACL(username, conf.Admin.User, "lrswipkxtecda") {
		return false
	}

	if limitKiB > 0 && !service.SetQuota(username, limitKiB) {
		return false
	}

	if !createDefaultFolders(service, conf) {
		return false
	}

	if !service.DeleteACL(username, conf.Admin.User) {
		level.Warn(logger).Log(
			"msg", "failed to revoke administrative rights on the new mailbox",
			"user", username,
			"err", service.LastError().Text,
		)
	}

	return true
}

// deleteAccount removes one account. Cyrus style servers
// only allow the DELETE after the administrator granted
// itself rights on the mailbox.
func deleteAccount(service imap.Service, conf *config.Config, username string) bool {

	if !service.SetACL(username, conf.Admin.User, "lrswipkxtecda") {
		return false
	}

	return service.DeleteMailbox(username)
}

// createDefaultFolders creates and subscribes all folders
// configured for new accounts.
func createDefaultFolders(service imap.Service, conf *config.Config) bool {

	for _, folder := range conf.IMAP.DefaultFolders {
		if !service.CreateFolder(folder.Name, folder.SpecialUse) {
			return false
		}
	}

	return true
}
