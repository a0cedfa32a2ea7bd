package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/toramanemre/wifimitm/pkg/attack"
	"github.com/toramanemre/wifimitm/pkg/proc"
)

// Exit codes, some inspired by sysexits.h. Each distinct fatal condition has
// its own code so automated callers can branch on cause.
const (
	exitOK             = 0
	exitArguments      = 2
	exitUnavailable    = 69
	exitNoPerm         = 77
	exitTargetNotFound = 79
)

func main() {
	root := NewRootCmd()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	var (
		argErr   *argumentError
		reqErr   *requirementError
		notFound *attack.TargetNotFoundError
		spawnErr *proc.SpawnError
	)
	switch {
	case errors.As(err, &argErr):
		return exitArguments
	case errors.As(err, &reqErr):
		if reqErr.permission {
			return exitNoPerm
		}
		return exitUnavailable
	case errors.As(err, &notFound):
		return exitTargetNotFound
	case errors.As(err, &spawnErr):
		return exitUnavailable
	case errors.Is(err, os.ErrPermission):
		return exitNoPerm
	default:
		return 1
	}
}
