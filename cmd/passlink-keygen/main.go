// passlink-keygen печатает новый мастер-ключ шифрования (64 hex-символа)
// для PL_ENCRYPTION_KEY.
package main

import (
	"fmt"
	"os"

	"github.com/bigkaa/passlink/internal/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ошибка генерации ключа: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
