package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// TLSResult carries the negotiated TLS config plus the autocert manager when
// the Let's Encrypt strategy is in use (the gateway needs its HTTP challenge
// handler).
type TLSResult struct {
	Config      *tls.Config
	AutocertMgr *autocert.Manager
}

// SetupTLS picks a certificate strategy from the config: autocert when a web
// domain is set, operator-provided cert/key files when both are set, and
// otherwise a self-signed certificate persisted under CertDir so restarts
// keep presenting the same one.
func SetupTLS(conf *Conf) (*TLSResult, error) {
	if conf.WebDomain != "" {
		cacheDir := filepath.Join(conf.CertDir, "autocert-cache")
		if err := os.MkdirAll(cacheDir, 0700); err != nil {
			return nil, fmt.Errorf("autocert cache dir: %w", err)
		}
		log.Printf("tls: Let's Encrypt certificates for %q", conf.WebDomain)
		mgr := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(conf.WebDomain),
			Cache:      autocert.DirCache(cacheDir),
		}
		return &TLSResult{Config: mgr.TLSConfig(), AutocertMgr: mgr}, nil
	}

	if conf.TLSCert != "" && conf.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(conf.TLSCert, conf.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("loading certificate pair: %w", err)
		}
		log.Printf("tls: certificate %s, key %s", conf.TLSCert, conf.TLSKey)
		return &TLSResult{Config: &tls.Config{Certificates: []tls.Certificate{cert}}}, nil
	}

	cfg, err := selfSignedConfig(conf.CertDir, conf.VenueName)
	if err != nil {
		return nil, err
	}
	return &TLSResult{Config: cfg}, nil
}

// selfSignedConfig loads the self-signed pair from dir, minting and saving a
// fresh one if none exists yet. The certificate names the venue so operators
// can tell instances apart in browser warnings.
func selfSignedConfig(dir, venue string) (*tls.Config, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("cert dir: %w", err)
	}
	certPath := filepath.Join(dir, "self-signed.crt")
	keyPath := filepath.Join(dir, "self-signed.key")

	if cert, err := tls.LoadX509KeyPair(certPath, keyPath); err == nil {
		log.Printf("tls: reusing self-signed certificate in %s", dir)
		return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
	}

	if err := mintSelfSigned(certPath, keyPath, venue); err != nil {
		return nil, err
	}
	log.Printf("tls: self-signed certificate written to %s", dir)

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading minted certificate: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}

// mintSelfSigned writes a one-year ECDSA P-256 certificate for localhost.
func mintSelfSigned(certPath, keyPath, venue string) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generating serial: %w", err)
	}
	if venue == "" {
		venue = "GoMuch"
	}

	now := time.Now()
	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{venue},
			CommonName:   "localhost",
		},
		NotBefore:             now,
		NotAfter:              now.AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("creating certificate: %w", err)
	}
	if err := writePEM(certPath, "CERTIFICATE", der, 0644); err != nil {
		return err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshaling key: %w", err)
	}
	return writePEM(keyPath, "EC PRIVATE KEY", keyDER, 0600)
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
