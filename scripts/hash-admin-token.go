// Command hash-admin-token prints an admin token and the ADMIN_TOKEN_HASH
// value that accepts it.
//
//	go run ./scripts/hash-admin-token.go            # generate a new token
//	go run ./scripts/hash-admin-token.go -token=... # hash an existing token
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/modelforge/waitlist/internal/auth"
)

type output struct {
	Token string `json:"token"`
	Hash  string `json:"hash"`
}

func main() {
	var (
		token  = flag.String("token", "", "Existing token to hash; a new one is generated when empty")
		format = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	var out output
	if *token == "" {
		generated, err := auth.GenerateAdminToken()
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate token:", err)
			os.Exit(1)
		}
		out = output{Token: generated.Plaintext, Hash: generated.Hash}
	} else {
		if !auth.ValidateTokenFormat(*token) {
			fmt.Fprintln(os.Stderr, "warning: token does not match the wla_<32 hex> format")
		}
		hash, err := auth.HashToken(*token)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash token:", err)
			os.Exit(1)
		}
		out = output{Token: *token, Hash: hash}
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, "encode output:", err)
			os.Exit(1)
		}
	case "plain":
		fmt.Printf("ADMIN_TOKEN=%s\n", out.Token)
		fmt.Printf("ADMIN_TOKEN_HASH='%s'\n", out.Hash)
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(1)
	}
}
