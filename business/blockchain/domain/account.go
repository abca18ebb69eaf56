package domain

// AccountInfo is the raw state of a Solana account.
type AccountInfo struct {
	Owner    PublicKey
	Lamports uint64
	Data     []byte
}

// ProgramAccount pairs an account with its address, as returned by a program scan.
type ProgramAccount struct {
	Pubkey  PublicKey
	Account AccountInfo
}

// TokenBalance is an SPL token account balance as reported by the node,
// already normalized by the mint decimals.
type TokenBalance struct {
	Account  PublicKey
	Mint     string
	Decimals uint8
	// UIAmount is the exact decimal string (uiAmountString).
	UIAmount string
}

// AccountFilter narrows a program scan. Exactly one of DataSize or Memcmp is set.
type AccountFilter struct {
	DataSize uint64
	Memcmp   *Memcmp
}

// Memcmp matches accounts whose data holds Bytes at Offset.
type Memcmp struct {
	Offset uint64
	Bytes  []byte
}

// DataSizeFilter matches accounts of exactly size bytes.
func DataSizeFilter(size uint64) AccountFilter {
	return AccountFilter{DataSize: size}
}

// MemcmpFilter matches accounts holding key at offset.
func MemcmpFilter(offset uint64, key PublicKey) AccountFilter {
	return AccountFilter{Memcmp: &Memcmp{Offset: offset, Bytes: key.Bytes()}}
}
