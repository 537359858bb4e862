// Command wgcore-keygen generates an X25519 private/public keypair in
// the standard WireGuard base64 encoding, for dropping into a
// config.Config's privateKey/peers[].publicKey fields.
//
// Grounded on cmd/handlers/confgen.go's "generate keys, print them,
// exit" shape.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"

	"golang.org/x/crypto/curve25519"
)

func main() {
	psk := flag.Bool("preshared", false, "generate a preshared key instead of a keypair")
	flag.Parse()

	if *psk {
		var key [32]byte
		if _, err := rand.Read(key[:]); err != nil {
			log.Fatalf("wgcore-keygen: %v", err)
		}
		fmt.Println(base64.StdEncoding.EncodeToString(key[:]))
		return
	}

	var sk [32]byte
	if _, err := rand.Read(sk[:]); err != nil {
		log.Fatalf("wgcore-keygen: %v", err)
	}
	pk, err := curve25519.X25519(sk[:], curve25519.Basepoint)
	if err != nil {
		log.Fatalf("wgcore-keygen: %v", err)
	}

	fmt.Printf("private: %s\n", base64.StdEncoding.EncodeToString(sk[:]))
	fmt.Printf("public:  %s\n", base64.StdEncoding.EncodeToString(pk))
}
