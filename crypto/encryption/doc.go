// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package encryption provides the crypto factories used by xecrets
// containers and a registry that maps format ids to them.
//
// A factory bundles everything that differs between format
// generations: the block cipher and key size, the passphrase key
// derivation and the master key wrap. Factories are identified by a
// UUID that is recorded (implicitly or explicitly) by each container.
//
// Three factories are built in:
//
//	V1AES128  legacy: AES-128, SHA-1 passphrase hash XOR salt, RFC 3394
//	          key wrap with a stored round count
//	V2AES128  AES-128, PBKDF2-HMAC-SHA512, RFC 3394 key wrap
//	V2AES256  AES-256, PBKDF2-HMAC-SHA512, RFC 3394 key wrap (default)
//
// Registries are explicit values; NewRegistry returns one populated
// with the built-in factories and Standard is a process-wide instance
// of it.
package encryption
