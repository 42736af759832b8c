// Command hash-password prints the bcrypt hash to put into STAFF_PASSWORD_HASH.
//
//	echo -n 'secret' | hash-password
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/carbook/platform/libs/sessions"
)

func main() {
	password := ""
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: hash-password <password> (or pass it on stdin)")
			os.Exit(2)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "password must not be empty")
		os.Exit(2)
	}

	hash, err := sessions.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash failed:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
