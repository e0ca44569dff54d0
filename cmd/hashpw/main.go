// Command hashpw prints the salt$hash form of a password for the
// *_PASSWORD_HASH and CHALLENGE_HASH settings.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"atlasgym/internal/auth"
)

func main() {
	var pw string
	if len(os.Args) > 1 {
		pw = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "usage: hashpw <password>  (or pipe it on stdin)")
			os.Exit(2)
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if pw == "" {
		fmt.Fprintln(os.Stderr, "hashpw: empty password")
		os.Exit(2)
	}
	enc, err := auth.EncodeSecret(pw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
	fmt.Println(enc)
}
