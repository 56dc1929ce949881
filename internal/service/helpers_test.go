package service

import (
	"io"

	"github.com/rs/zerolog"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// newCheapHashService keeps Argon2 fast enough for table tests.
func newCheapHashService() *Argon2HashService {
	return NewArgon2HashServiceWithParams(Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8})
}
