// keygen generates a token signing key pair and writes the PEM files used by
// TOKEN_PRIVATE_KEY and TOKEN_PUBLIC_KEY.
package main

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"flag"
	"fmt"
	"os"

	"identity-plane/internal/security"
)

func main() {
	alg := flag.String("alg", "ec", "Key algorithm: ec (P-256) or rsa (2048)")
	privOut := flag.String("private", "token_private.pem", "Private key output path")
	pubOut := flag.String("public", "token_public.pem", "Public key output path")
	flag.Parse()

	var (
		key crypto.Signer
		err error
	)
	switch *alg {
	case "ec":
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "rsa":
		key, err = rsa.GenerateKey(rand.Reader, 2048)
	default:
		fmt.Fprintf(os.Stderr, "unknown algorithm %q (want ec or rsa)\n", *alg)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate:", err)
		os.Exit(1)
	}

	privPEM, err := security.MarshalPrivatePEM(key)
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode private:", err)
		os.Exit(1)
	}
	pubPEM, err := security.MarshalPublicPEM(key.Public())
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode public:", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*privOut, privPEM, 0o600); err != nil {
		fmt.Fprintln(os.Stderr, "write private:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*pubOut, pubPEM, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "write public:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s and %s\n", *privOut, *pubOut)
}
