package card

import (
	"crypto/sha256"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// sharedSecret derives the ECDH shared secret between a private and a public
// key on secp256k1 (RFC 5903 style, compressed-point form: parity prefix
// plus x-coordinate). Callers hash the result before use as a key.
func sharedSecret(privateKey *secp256k1.PrivateKey, publicKey *secp256k1.PublicKey) []byte {
	var point, result secp256k1.JacobianPoint
	publicKey.AsJacobian(&point)
	secp256k1.ScalarMultNonConst(&privateKey.Key, &point, &result)
	result.ToAffine()

	xBytes := result.X.Bytes()

	y := new(big.Int).SetBytes(result.Y.Bytes()[:])
	prefix := new(big.Int).Or(new(big.Int).And(y, big.NewInt(0x01)), big.NewInt(0x02))

	return append(prefix.Bytes(), xBytes[:]...)
}

// pairingKey turns a shared secret into the symmetric pairing key.
func pairingKey(secret []byte) [sha256.Size]byte {
	return sha256.Sum256(secret)
}
