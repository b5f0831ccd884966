package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Printf("command: %v", os.Args[1:])
}
