package system

import (
	"context"
	"fmt"
)

// Subject holds the certificate subject fields.
type Subject struct {
	Country      string
	State        string
	Locality     string
	Organization string
	CommonName   string
}

func (s Subject) String() string {
	return fmt.Sprintf("/C=%s/ST=%s/L=%s/O=%s/CN=%s",
		s.Country, s.State, s.Locality, s.Organization, s.CommonName)
}

// CertIssuer generates a private key and a self-signed certificate.
// Existence checks belong to the caller; these calls always generate.
type CertIssuer interface {
	GenerateKey(ctx context.Context, keyPath string) error
	GenerateCert(ctx context.Context, keyPath, certPath string, subject Subject, validityDays int) error
}

// OpenSSL drives the openssl binary.
type OpenSSL struct {
	Runner CommandRunner
}

func (o OpenSSL) GenerateKey(ctx context.Context, keyPath string) error {
	res, err := o.Runner.Run(ctx, "openssl", "genrsa", "-out", keyPath, "2048")
	if err != nil {
		return fmt.Errorf("openssl genrsa: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("openssl genrsa: %s", res.Diagnostic())
	}
	return nil
}

func (o OpenSSL) GenerateCert(ctx context.Context, keyPath, certPath string, subject Subject, validityDays int) error {
	res, err := o.Runner.Run(ctx, "openssl", "req", "-x509", "-new",
		"-key", keyPath,
		"-out", certPath,
		"-days", fmt.Sprint(validityDays),
		"-subj", subject.String())
	if err != nil {
		return fmt.Errorf("openssl req: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("openssl req: %s", res.Diagnostic())
	}
	return nil
}

var _ CertIssuer = OpenSSL{}
