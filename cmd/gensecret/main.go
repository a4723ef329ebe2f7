// Command gensecret prints random hex string suitable for SECRET_KEY
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/Mohamedseffine/01Blog/internal/service/auth/tokenmanager"
)

const minSecretBytes = tokenmanager.MinSecretKeyLength

func main() {
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, args []string) error {
	fs := pflag.NewFlagSet("gensecret", pflag.ContinueOnError)
	size := fs.IntP("bytes", "n", minSecretBytes, "Secret length in bytes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *size < minSecretBytes {
		return fmt.Errorf("secret must be at least %d bytes", minSecretBytes)
	}

	b := make([]byte, *size)
	if _, err := rand.Read(b); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, hex.EncodeToString(b))
	return err
}
