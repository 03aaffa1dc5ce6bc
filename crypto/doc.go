// Package crypto implements the container's at-rest encryption: an
// Argon2id key derivation combining a container-wide base salt with a
// per-module salt, and AES-256-GCM as the AEAD over a module's plaintext
// envelope (spec §3 EncryptionParams, §7 error table "Encrypted" row).
package crypto
