// Herramienta de operación: cifra un secreto con la clave maestra del
// servicio, para sembrar valores en la tabla two_factor o en fixtures.
//
//	SECRETBOX_MASTER_KEY=<base64 32 bytes> go run ./tools <plaintext>
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/nexaerp/authd/internal/security/secretbox"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: seal_secret <plaintext>")
	}
	key := os.Getenv("SECRETBOX_MASTER_KEY")
	if key == "" {
		log.Fatal("SECRETBOX_MASTER_KEY is not set")
	}

	box, err := secretbox.New(key)
	if err != nil {
		log.Fatalf("secretbox: %v", err)
	}
	sealed, err := box.Encrypt(os.Args[1])
	if err != nil {
		log.Fatalf("encrypt: %v", err)
	}
	fmt.Println(sealed)
}
