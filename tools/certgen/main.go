// Package main writes a development certificate authority for the fake story API.
//
//	go run ./tools/certgen -dir certs
//
// Start the fake server with -tls-ca-cert certs/ca.crt -tls-ca-key certs/ca.key
// and the client with -ca certs/ca.crt.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atinyakov/storyapp/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	name := flag.String("cn", "Story Dev CA", "authority common name")
	flag.Parse()

	certPath, keyPath, err := run(*dir, *name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Authority written to %s and %s\n", certPath, keyPath)
}

func run(dir, commonName string) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create %s: %w", dir, err)
	}
	ca, err := certgen.NewAuthority(commonName)
	if err != nil {
		return "", "", err
	}
	certPath, keyPath := filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")
	if err := ca.WriteFiles(certPath, keyPath); err != nil {
		return "", "", err
	}
	return certPath, keyPath, nil
}
