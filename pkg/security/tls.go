package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// keypairValidity is how long a generated cluster TLS keypair remains
// valid. Clusters are short-lived relative to this, so rotation is not
// attempted; a cluster that outlives its own certificate is recreated.
const keypairValidity = 365 * 24 * time.Hour

// GenerateKeypair creates a self-signed RSA-2048 certificate and private
// key for a single cluster's scheduler to present over TLS. There is no
// shared certificate authority: each cluster is an independent trust root
// and clients are expected to pin or skip verification, matching how a
// per-cluster Dask scheduler is reached from a single known client.
//
// The returned cert and key are PEM-encoded, ready to store directly on a
// Cluster record or hand to tls.X509KeyPair.
func GenerateKeypair(clusterName string) (certPEM, keyPEM []byte, err error) {
	if clusterName == "" {
		return nil, nil, fmt.Errorf("security: cluster name required for keypair generation")
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("security: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("security: generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: clusterName,
		},
		NotBefore:             now.Add(-5 * time.Minute),
		NotAfter:              now.Add(keypairValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{clusterName},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("security: create certificate: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}
