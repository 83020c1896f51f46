package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/RyanW02/waterledger/internal/utils"
	"github.com/RyanW02/waterledger/pkg/types/audit"
)

var (
	keyFile   = flag.String("out", "key.txt", "Path to write the private key to")
	overwrite = flag.Bool("force", false, "Overwrite an existing key file")
)

// Generates a signing key and prints the principal to put in the genesis admin list or grant a role to.
func main() {
	flag.Parse()

	if _, err := os.Stat(*keyFile); err == nil && !*overwrite {
		fmt.Fprintf(os.Stderr, "%s already exists, pass -force to overwrite it\n", *keyFile)
		os.Exit(1)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}

	if err := utils.WritePrivateKey(*keyFile, priv); err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Wrote private key to %s\n", *keyFile)
	fmt.Println(audit.PrincipalFromKey(pub))
}
