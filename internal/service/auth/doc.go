// Package auth validates and mints the HS256 session tokens that identify a
// caller. A valid token yields a domain.Principal (user id and role); there is
// no password or login handling in this package.
package auth
