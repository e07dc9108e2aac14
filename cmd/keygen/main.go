// Command keygen prints a freshly generated base64 encryption key for
// CLOUDMESH_ENCRYPTION_KEY.
package main

import (
	"fmt"
	"os"

	"github.com/cloudmesh/cloudmesh/internal/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
