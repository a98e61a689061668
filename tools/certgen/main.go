// Package main generates a development Certificate Authority and a server
// certificate signed by it, writing them to files under the "certs" directory.
// An existing CA in the target directory is reused so that clients which
// already trust it keep working after the server certificate is reissued.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/soundpad/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "directory for generated certificates and keys")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs for the server certificate")
	flag.Parse()

	if err := run(*dir, splitHosts(*hosts)); err != nil {
		fmt.Fprintln(os.Stderr, "certgen:", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Certificates generated into %s\n", *dir)
}

// run ensures a CA exists under dir and issues server.crt/server.key for hosts.
func run(dir string, hosts []string) error {
	caCertPath := filepath.Join(dir, "ca.crt")
	caKeyPath := filepath.Join(dir, "ca.key")

	// 1. Reuse or generate the CA
	if _, err := os.Stat(caCertPath); errors.Is(err, fs.ErrNotExist) {
		certPEM, keyPEM, err := certgen.GenerateCA("soundpad dev CA")
		if err != nil {
			return err
		}
		if err := certgen.WritePair(caCertPath, caKeyPath, certPEM, keyPEM); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("stat ca cert: %w", err)
	}

	caCert, caKey, err := certgen.LoadCACredentials(caCertPath, caKeyPath)
	if err != nil {
		return err
	}

	// 2. Server certificate signed by the CA
	certPEM, keyPEM, err := certgen.GenerateServerCertificate(hosts, caCert, caKey)
	if err != nil {
		return err
	}
	return certgen.WritePair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key"), certPEM, keyPEM)
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
