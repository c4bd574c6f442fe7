package main

import (
	"errors"
	"os"

	"github.com/Domenick1991/flightmanager/internal/logger"
)

var errNoRedis = errors.New("requires redis.addr")

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
