// Command hashpassword prints the bcrypt hash to put in AUTH_PASSWORD_HASH.
// The password is read from --password or, when that is empty, from the
// first line of stdin.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/pbcachim/baralhos/internal/auth"
)

func main() {
	password := flag.StringP("password", "p", "", "password to hash (read from stdin when empty)")
	cost := flag.IntP("cost", "c", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	pw := *password
	if pw == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("failed to read password from stdin: %v", err)
		}
		pw = strings.TrimRight(line, "\r\n")
	}

	hash, err := auth.HashPassword(pw, *cost)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hash)
}
