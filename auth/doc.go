// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides credentials, bearer tokens, and the authorization policy.

# PINs and Passwords

Pickers log in with a PIN that doubles as their username. PINs and admin
passwords are both hashed with bcrypt:

	hash, err := auth.HashSecret(pin)
	err = auth.VerifySecret(pin, hash) // ErrInvalidCredentials on mismatch

# Bearer Tokens

Tokens are HS256 JWTs with claims {sub, username, role, exp}:

	token, err := auth.IssueToken(user.ID, user.Username, user.Role, secret, ttl)
	claims, err := auth.ParseToken(token, secret) // ErrInvalidToken on any failure

# Authorization

Authorize is the only place role decisions are made:

	if !auth.Authorize(claims.Role, auth.ResourceAdmin, auth.ActionRead) {
		// 403
	}

The table is keyed by (resource, action) and lists the roles allowed.
Ownership checks stay in handlers, which ask for the *Any action when the
caller touches someone else's records.

# IDs

	id := auth.NewID() // UUID for database rows

# IP Hashing

Usage events store a salted hash of the client IP when IP_HASH_SALT is set:

	hash := auth.HashIP(ipAddress, salt) // "" when salt is empty
*/
package auth
