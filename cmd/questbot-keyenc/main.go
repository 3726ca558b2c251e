// Command questbot-keyenc seals an API key into a password-protected file
// that questbot can read through unhedged.api_key_file.
//
//	QUESTBOT_KEY_PASSWORD=... questbot-keyenc -key-env UNHEDGED_API_KEY -out unhedged.key
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/alanyoungcy/questbot/internal/crypto"
)

func main() {
	keyEnv := flag.String("key-env", "UNHEDGED_API_KEY", "environment variable holding the key to seal")
	passEnv := flag.String("password-env", "QUESTBOT_KEY_PASSWORD", "environment variable holding the sealing password")
	label := flag.String("label", "unhedged", "label stored alongside the sealed key")
	out := flag.String("out", "unhedged.key", "output file")
	verify := flag.Bool("verify", true, "re-open the file after writing")
	flag.Parse()

	_ = godotenv.Load()

	if err := seal(*keyEnv, *passEnv, *label, *out, *verify); err != nil {
		fmt.Fprintf(os.Stderr, "questbot-keyenc: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("sealed %s into %s\n", *keyEnv, *out)
}

func seal(keyEnv, passEnv, label, out string, verify bool) error {
	secret := strings.TrimSpace(os.Getenv(keyEnv))
	if secret == "" {
		return fmt.Errorf("%s is empty", keyEnv)
	}
	password := os.Getenv(passEnv)
	if password == "" {
		return fmt.Errorf("%s is empty", passEnv)
	}

	blob, err := crypto.Seal(secret, password, label)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, blob, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if !verify {
		return nil
	}
	got, err := crypto.Open(blob, password)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if got != secret {
		return fmt.Errorf("verify: round trip mismatch")
	}
	return nil
}
