package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/circleci/liveserver/termination"
)

func main() {
	if code := os.Getenv("EXIT_CODE"); code != "" {
		fmt.Println("exiting early")
		os.Exit(3)
	}

	fmt.Printf("started %s\n", os.Getenv("GREETING"))
	err := termination.Handle(context.Background())
	if errors.Is(err, termination.ErrTerminated) {
		fmt.Println("interrupted")
		return
	}
	os.Exit(1)
}
