package domain

// DerivedKeyPair holds the two keys expanded from the RootSecret: CipherKey wraps DEKs,
// IntegrityKey computes fingerprints. Pairs are recomputed per operation and wiped
// after use.
type DerivedKeyPair struct {
	CipherKey    []byte
	IntegrityKey []byte
}

// Close zeroes both keys.
func (p *DerivedKeyPair) Close() {
	if p == nil {
		return
	}
	Zero(p.CipherKey)
	Zero(p.IntegrityKey)
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
