package crypto

import (
	"fmt"
	"os"

	"crypto/tls"
	"crypto/x509"

	"github.com/pkg/errors"
)

// Functions

// NewClientTLSConfig returns a TLS config for connecting
// to an IMAP server, either for an implicit TLS connect or
// for a STARTTLS upgrade. The peer name is the name the
// server certificate is verified against. It defines
// strict defaults and relies on the system cert pool
// unless an additional root certificate is supplied.
func NewClientTLSConfig(peerName string, rootCertPath string) (*tls.Config, error) {

	// Strict client-side defaults: no legacy protocol
	// versions, modern curves and AEAD cipher suites only.
	config := &tls.Config{
		ServerName:         peerName,
		InsecureSkipVerify: false,
		MinVersion:         tls.VersionTLS12,
		CurvePreferences:   []tls.CurveID{tls.X25519, tls.CurveP384, tls.CurveP256},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}

	if rootCertPath == "" {
		return config, nil
	}

	// Mail setups frequently run their own CA. Trust the
	// supplied root certificate in addition to the system
	// pool instead of replacing it.
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}

	rootCert, err := os.ReadFile(rootCertPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read root certificate into memory")
	}

	if ok := pool.AppendCertsFromPEM(rootCert); !ok {
		return nil, fmt.Errorf("failed to append certificate from '%s' to root CA pool", rootCertPath)
	}

	config.RootCAs = pool

	return config, nil
}
