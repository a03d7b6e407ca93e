package main

import (
	"fmt"
	"os"

	"github.com/mnemo-oss/mnemo/internal/cli"
	mnemoErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

func main() {
	err := cli.Execute()
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	if s := mnemoErrors.Suggestion(err); s != "" {
		fmt.Fprintln(os.Stderr, "  →", s)
	}

	if mnemoErrors.AsCode(err) == mnemoErrors.CodeDeadlockGuard {
		os.Exit(3)
	}
	os.Exit(1)
}
