package shamir

// GF(256) arithmetic with the AES reduction polynomial 0x11b.

func gfAdd(a, b byte) byte { return a ^ b }
func gfSub(a, b byte) byte { return a ^ b }

func gfMul(a, b byte) byte {
	var res byte
	for b > 0 {
		if b&1 == 1 {
			res ^= a
		}
		carry := a & 0x80
		a <<= 1
		if carry != 0 {
			a ^= 0x1b
		}
		b >>= 1
	}
	return res
}

func gfPow(a, n byte) byte {
	var res byte = 1
	for n > 0 {
		if n&1 == 1 {
			res = gfMul(res, a)
		}
		a = gfMul(a, a)
		n >>= 1
	}
	return res
}

// gfInv returns the multiplicative inverse, a^254 by Fermat.
func gfInv(a byte) byte {
	if a == 0 {
		return 0
	}
	return gfPow(a, 254)
}

func gfDiv(a, b byte) byte {
	if b == 0 {
		return 0
	}
	return gfMul(a, gfInv(b))
}
