// Package rsakeys holds the RSA public keys used to wrap AES session keys
// during the handshake: one embedded 1024-bit key, one embedded 2048-bit
// key, and a loader for a user-supplied "alternate" 2048-bit PEM file.
package rsakeys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/tectrolabs-go/alpharng/internal/errs"
)

// embedded1024PEM is the factory-provisioned 1024-bit public key used for
// the pkRSA1024 handshake path.
const embedded1024PEM = `-----BEGIN PUBLIC KEY-----
MIGfMA0GCSqGSIb3DQEBAQUAA4GNADCBiQKBgQCXN1Lb+zMOkno++l0PhDqw6Zo1
u9C13RYujNGeWtEI2x3ToEHD/l+bbJdj0nuczpEFhZIxUdoLiduIIyWj8ZUtwVgv
DdaqXuWQ6AYnUrtvQqdO0q168+uudhNlKTA6ZmaLdQ0lBEaoF3hl1/3bj5JF55Z4
iap3hjt204wyDW1LqwIDAQAB
-----END PUBLIC KEY-----
`

// embedded2048PEM is the factory-provisioned 2048-bit public key used for
// the pkRSA2048 handshake path.
const embedded2048PEM = `-----BEGIN PUBLIC KEY-----
MIIBIjANBgkqhkiG9w0BAQEFAAOCAQ8AMIIBCgKCAQEAsdDLToG2s/fbpMYNhJm6
58KsIdoC3z+Qrila0rcrGzkl6V0AHnsyA1T01U9jjy4OCe358FftbwVfu1DP35lq
/FDFbiRzyMUMUerXEuG7PKk3dyqABYM6C+00ibWltKYFl5RMQImM6YCWFO1h3mHA
RUzhmH8n00Y67SoL9XUFjkXhCMQh0UBXNAUBlYO/8FeancheHvt1C814uW3ELoU7
DEqQ7p49Y91GGOJaSdpVaYb8A68bmmZwz+VRbE3kbPYISbxRRQL4dr8JVZ3spymP
AviJzBahIoMihMrd9jjXY+X3U2Bms+0uQmroWpwyMqtLlUt3nfnMK56QabH913zB
mwIDAQAB
-----END PUBLIC KEY-----
`

// Embedded1024 parses the factory 1024-bit public key.
func Embedded1024() (*rsa.PublicKey, error) {
	return parsePEM([]byte(embedded1024PEM))
}

// Embedded2048 parses the factory 2048-bit public key.
func Embedded2048() (*rsa.PublicKey, error) {
	return parsePEM([]byte(embedded2048PEM))
}

// LoadFromFile parses a PEM-encoded public key file, for the alternate
// 2048-bit handshake path where the caller supplies their own key.
func LoadFromFile(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(errs.KindConfig, err, "read rsa public key file %s", path)
	}
	return parsePEM(data)
}

func parsePEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errs.New(errs.KindConfig, "no PEM block found in rsa public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfig, err, "parse rsa public key")
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errs.New(errs.KindConfig, "PEM block is not an RSA public key")
	}
	return rsaPub, nil
}
