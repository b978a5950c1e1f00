package types

// Account is the state of a user account.
type Account struct {
	Hash      AccountHash `json:"account_hash"`
	NamedKeys NamedKeys   `json:"named_keys"`
}

func NewAccount(hash AccountHash) *Account {
	return &Account{Hash: hash, NamedKeys: NamedKeys{}}
}

func (a *Account) Clone() *Account {
	return &Account{Hash: a.Hash, NamedKeys: a.NamedKeys.Clone()}
}

// ContractVersion binds a version number to a contract.
type ContractVersion struct {
	ProtocolMajor uint32       `json:"protocol_major"`
	Version       uint32       `json:"version"`
	Contract      ContractHash `json:"contract_hash"`
}

// ContractPackage holds every version of a contract. AccessKey must be presented to
// add versions.
type ContractPackage struct {
	AccessKey URef              `json:"access_key"`
	Versions  []ContractVersion `json:"versions"`
}

func (p *ContractPackage) Clone() *ContractPackage {
	out := *p
	out.Versions = append([]ContractVersion(nil), p.Versions...)
	return &out
}

// NextVersion returns the number the next version under protocolMajor will get.
func (p *ContractPackage) NextVersion(protocolMajor uint32) uint32 {
	var last uint32
	for _, v := range p.Versions {
		if v.ProtocolMajor == protocolMajor && v.Version > last {
			last = v.Version
		}
	}
	return last + 1
}

// Insert records a new version and returns its number.
func (p *ContractPackage) Insert(protocolMajor uint32, contract ContractHash) uint32 {
	version := p.NextVersion(protocolMajor)
	p.Versions = append(p.Versions, ContractVersion{
		ProtocolMajor: protocolMajor,
		Version:       version,
		Contract:      contract,
	})
	return version
}

// Latest returns the highest version under protocolMajor.
func (p *ContractPackage) Latest(protocolMajor uint32) (ContractVersion, bool) {
	var (
		best  ContractVersion
		found bool
	)
	for _, v := range p.Versions {
		if v.ProtocolMajor == protocolMajor && (!found || v.Version > best.Version) {
			best = v
			found = true
		}
	}
	return best, found
}

// Lookup finds an explicit version under protocolMajor.
func (p *ContractPackage) Lookup(protocolMajor, version uint32) (ContractVersion, bool) {
	for _, v := range p.Versions {
		if v.ProtocolMajor == protocolMajor && v.Version == version {
			return v, true
		}
	}
	return ContractVersion{}, false
}

// Contract is a single installed version of a contract package.
type Contract struct {
	Package       ContractPackageHash `json:"contract_package_hash"`
	Wasm          ContractWasmHash    `json:"contract_wasm_hash"`
	NamedKeys     NamedKeys           `json:"named_keys"`
	EntryPoints   EntryPoints         `json:"entry_points"`
	ProtocolMajor uint32              `json:"protocol_major"`
}

func (c *Contract) Clone() *Contract {
	out := *c
	out.NamedKeys = c.NamedKeys.Clone()
	out.EntryPoints = append(EntryPoints(nil), c.EntryPoints...)
	return &out
}

func (c *Contract) HasEntryPoint(name string) bool {
	return c.EntryPoints.Has(name)
}

// ContractWasm holds the module bytes of a contract. When Stored is set the bytes
// live in the code repository under the wasm hash.
type ContractWasm struct {
	Bytes  []byte `json:"bytes,omitempty"`
	Stored bool   `json:"stored,omitempty"`
}
