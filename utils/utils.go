// Package utils provides the environment needed for tests that exercise
// real TLS handshakes against in-process fake IMAP servers.
package utils

import (
	"fmt"
	"net"
	"time"

	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"

	"github.com/pkg/errors"
)

// Structs

// TestEnv carries a matching pair of TLS configurations:
// one for a fake server listening on the loopback address
// and one for a client that trusts exactly that server's
// self-signed certificate.
type TestEnv struct {
	ServerTLSConfig *tls.Config
	ClientTLSConfig *tls.Config
}

// Functions

// CreateTestTLSEnv generates a fresh self-signed
// certificate for the loopback address and bundles it
// into the server and client TLS configurations used
// by connection tests.
func CreateTestTLSEnv() (*TestEnv, error) {

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate RSA test key")
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate random serial number")
	}

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"skaffari-imap test"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(1 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	derCert, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create self-signed test certificate")
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derCert})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	serverCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to bundle test certificate and key")
	}

	// Tests need to accept the self-signed certificate,
	// so it becomes the client's only trusted root.
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(certPEM); !ok {
		return nil, fmt.Errorf("failed to append test certificate to client root CA pool")
	}

	return &TestEnv{
		ServerTLSConfig: &tls.Config{
			Certificates: []tls.Certificate{serverCert},
			MinVersion:   tls.VersionTLS12,
		},
		ClientTLSConfig: &tls.Config{
			ServerName: "localhost",
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		},
	}, nil
}
