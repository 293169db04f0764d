// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package document encrypts and decrypts containers.
//
// A container is opened with Open, which parses its headers and
// applies the version gate. A Document is then loaded with a
// Candidate key; a key that does not match yields false, not an
// error. Probe tries every known passphrase and private key against
// every registered format. Once loaded, DecryptTo streams the
// plaintext to a writer and authenticates the container.
//
// DecryptTo writes plaintext before the trailing HMAC has been
// checked. Callers must discard the output when it returns an error.
//
// EncryptTo writes a new container to a seekable output. The Lengths
// block, and the Data block of legacy containers, are written as
// placeholders and patched once the data region is complete.
package document
