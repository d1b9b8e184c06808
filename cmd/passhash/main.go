package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/2beens/cfdnsadmin/pkg"

	log "github.com/sirupsen/logrus"
)

// Prints a bcrypt hash to be used as password_hash in the auth file.
// The password comes from -password, or the first line of stdin.
func main() {
	password := flag.String("password", "", "password to hash (read from stdin when empty)")
	cost := flag.Int("cost", pkg.PasswordHashCost, "bcrypt cost")
	flag.Parse()

	if *password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read password from stdin: %s", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}
	if *password == "" {
		log.Fatalln("empty password")
	}

	hash, err := pkg.HashPasswordWithCost(*password, *cost)
	if err != nil {
		log.Fatalf("hash password: %s", err)
	}

	fmt.Println(hash)
}
