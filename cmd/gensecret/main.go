package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/authgate/internal/service/auth/tokenmanager"
)

func main() {
	length := pflag.IntP("length", "n", tokenmanager.MinSecretKeyLen, "Secret key length in bytes (hex output is twice as long)")
	pflag.Parse()

	secret, err := generate(*length)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(secret)
}

func generate(length int) (string, error) {
	if length < tokenmanager.MinSecretKeyLen {
		return "", fmt.Errorf("length must be at least %d bytes, got %d", tokenmanager.MinSecretKeyLen, length)
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
