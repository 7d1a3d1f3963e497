// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/z5labs/nutrition/config"

	"github.com/stretchr/testify/require"
)

// generateTestCertificates generates a test CA, server cert, and client cert
// for testing TLS functionality.
func generateTestCertificates(t *testing.T) (caCert, clientCert, clientKey []byte) {
	t.Helper()

	// Generate CA
	caPrivKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	caTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test CA"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	caCertDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caPrivKey.PublicKey, caPrivKey)
	require.NoError(t, err)

	caCert = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caCertDER})

	// Generate client certificate
	clientPrivKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	clientTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject: pkix.Name{
			Organization: []string{"Test Client"},
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().Add(24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	clientCertDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caTemplate, &clientPrivKey.PublicKey, caPrivKey)
	require.NoError(t, err)

	clientCert = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: clientCertDER})
	clientKey = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(clientPrivKey),
	})

	return caCert, clientCert, clientKey
}


func writeTestCertificates(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()

	caCert, clientCert, clientKey := generateTestCertificates(t)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "client-cert.pem")
	keyFile = filepath.Join(dir, "client-key.pem")
	caFile = filepath.Join(dir, "ca-cert.pem")

	require.NoError(t, os.WriteFile(certFile, clientCert, 0o600))
	require.NoError(t, os.WriteFile(keyFile, clientKey, 0o600))
	require.NoError(t, os.WriteFile(caFile, caCert, 0o600))
	return certFile, keyFile, caFile
}

func TestTLSConfigFromFiles(t *testing.T) {
	t.Run("will load the client certificate and CA", func(t *testing.T) {
		certFile, keyFile, caFile := writeTestCertificates(t)

		r := TLSConfigFromFiles(
			config.ReaderOf(certFile),
			config.ReaderOf(keyFile),
			config.ReaderOf(caFile),
		)

		tlsConfig, err := config.Read(context.Background(), r)
		require.NoError(t, err)
		require.Len(t, tlsConfig.Certificates, 1)
		require.NotNil(t, tlsConfig.RootCAs)
		require.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the CA file does not exist", func(t *testing.T) {
			certFile, keyFile, _ := writeTestCertificates(t)

			r := TLSConfigFromFiles(
				config.ReaderOf(certFile),
				config.ReaderOf(keyFile),
				config.ReaderOf(filepath.Join(t.TempDir(), "missing.pem")),
			)

			_, err := r.Read(context.Background())
			require.ErrorIs(t, err, os.ErrNotExist)
		})

		t.Run("if the CA file has no certificates", func(t *testing.T) {
			certFile, keyFile, _ := writeTestCertificates(t)

			caFile := filepath.Join(t.TempDir(), "empty.pem")
			require.NoError(t, os.WriteFile(caFile, []byte("not a certificate"), 0o600))

			r := TLSConfigFromFiles(
				config.ReaderOf(certFile),
				config.ReaderOf(keyFile),
				config.ReaderOf(caFile),
			)

			_, err := r.Read(context.Background())
			require.Error(t, err)
		})
	})
}

func TestTLSConfigFromEnv(t *testing.T) {
	t.Run("will be unset", func(t *testing.T) {
		t.Run("if no certificate file is configured", func(t *testing.T) {
			t.Setenv("NUTRITION_TLS_CERT_FILE", "")

			v, err := TLSConfigFromEnv().Read(context.Background())
			require.NoError(t, err)

			_, ok := v.Value()
			require.False(t, ok)
		})
	})

	t.Run("will load the files named by the environment", func(t *testing.T) {
		certFile, keyFile, caFile := writeTestCertificates(t)
		t.Setenv("NUTRITION_TLS_CERT_FILE", certFile)
		t.Setenv("NUTRITION_TLS_KEY_FILE", keyFile)
		t.Setenv("NUTRITION_TLS_CA_FILE", caFile)

		tlsConfig, err := config.Read(context.Background(), TLSConfigFromEnv())
		require.NoError(t, err)
		require.Len(t, tlsConfig.Certificates, 1)
	})
}
