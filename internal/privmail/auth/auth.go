// Package auth authenticates local SMTP submission to the sender proxy: a
// bcrypt-hashed credential file plus a login-attempt throttle, in the same
// shape as the teacher's device authenticator but against a flat
// credentials file instead of a user database.
package auth

import (
	"bytes"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/encryptogroup/PrivMail/internal/privmail/config"
	"github.com/encryptogroup/PrivMail/util/throttle"
)

// ErrBadCredentials is returned for any authentication failure; the caller
// must not distinguish "unknown user" from "bad password" in what it logs
// or returns to the client.
var ErrBadCredentials = errors.New("auth: bad credentials")

// Authenticator checks AUTH PLAIN submissions against a Credentials file,
// throttling repeated failures per remote address and per username.
type Authenticator struct {
	Credentials config.Credentials
	Throttle    *throttle.Throttle
	Logf        func(format string, v ...interface{})
}

// Authenticate verifies username/password (password compared case- and
// whitespace-insensitively, matching the teacher's app-password
// normalization) against the credentials file, throttling both the caller
// address and the username on failure.
func (a *Authenticator) Authenticate(remoteAddr, username string, password []byte) error {
	start := time.Now()
	var authErr error
	defer func() {
		if a.Logf != nil {
			a.Logf("auth: remote=%s username=%s duration=%s ok=%v", remoteAddr, username, time.Since(start), authErr == nil)
		}
	}()

	password = bytes.ToUpper(password)
	password = bytes.ReplaceAll(password, []byte(" "), []byte(""))

	if a.Throttle != nil {
		a.Throttle.Throttle(remoteAddr)
		a.Throttle.Throttle(username)
	}
	defer func() {
		if authErr != nil && a.Throttle != nil {
			a.Throttle.Add(remoteAddr)
			a.Throttle.Add(username)
		}
	}()

	hash, ok := a.Credentials.Lookup(username)
	if !ok {
		authErr = ErrBadCredentials
		return authErr
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), password); err != nil {
		authErr = ErrBadCredentials
		return authErr
	}
	return nil
}

// HashPassword bcrypt-hashes password at the default cost, for use by the
// credential-provisioning tooling (not part of the serving path).
func HashPassword(password []byte) (string, error) {
	password = bytes.ToUpper(password)
	password = bytes.ReplaceAll(password, []byte(" "), []byte(""))
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
