/*
Package security provides the cryptographic primitives the gateway needs to
protect cluster secrets at rest and to stand up a TLS endpoint per cluster.

It deliberately does not implement a certificate authority or mTLS: each
cluster's scheduler is reached directly by its owner's client, so a
self-signed per-cluster keypair is sufficient and there is no chain of
trust to maintain.

# Components

  - KeyRing encrypts API tokens and persisted state blobs with AES-256-GCM.
    It holds an ordered list of keys so operators can rotate the active
    key (prepend a new one) without invalidating rows encrypted under an
    older key still present in the ring. See keyring.go.
  - GenerateKeypair produces a self-signed RSA-2048 certificate and key
    for a single cluster's scheduler to present over TLS. See tls.go.
  - GenerateAPIToken produces the opaque bearer token the Connection
    Registrar checks on every request for a cluster. See token.go.

# Usage

	ring, err := security.NewKeyRing(cfg.EncryptionKeys)
	sealed, err := ring.Encrypt(apiToken)
	// ... persisted by pkg/storage ...
	plain, err := ring.Decrypt(sealed)

	certPEM, keyPEM, err := security.GenerateKeypair(cluster.Name)
	token, err := security.GenerateAPIToken()
*/
package security
