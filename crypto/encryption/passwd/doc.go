// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package passwd reads passphrases interactively, taking care to not
// echo them and to keep the raw bytes in memory for as short a time as
// possible. The returned key.Passphrase is what the crypto factories
// in github.com/rescenic/xecrets-net/crypto/encryption derive keys
// from.
//
// ReadNew implements the encryption side: the passphrase is entered
// twice and both entries must agree. Read implements the decryption
// side, where a wrong passphrase is detected later by the key wrap.
package passwd
