package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApiError(t *testing.T) {
	assert.Equal(t, uint32(16), ErrCLTypeMismatch.Code())
	assert.Equal(t, "api error: CLTypeMismatch [16]", ErrCLTypeMismatch.Error())
	assert.False(t, ErrMissingKey.IsUser())

	user := UserError(7)
	assert.True(t, user.IsUser())
	assert.Equal(t, uint32(65543), user.Code())
	assert.Equal(t, "api error: User(7) [65543]", user.Error())
	assert.Equal(t, "api error: unknown [999]", ApiError(999).Error())
}

func TestAddressGenerator(t *testing.T) {
	seed := Blake2b([]byte("deploy"))
	a := NewAddressGenerator(seed)
	b := NewAddressGenerator(seed)

	first := a.Next()
	assert.Equal(t, first, b.Next())
	assert.NotEqual(t, first, a.Next())
	assert.NotEqual(t, first, NewAddressGenerator(Blake2b([]byte("other"))).Next())
}

func TestHashFromString(t *testing.T) {
	h := Blake2b([]byte("x"))
	parsed, err := HashFromString("0x" + h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = HashFromString("abcd")
	assert.Error(t, err)
	_, err = HashFromString("zz")
	assert.Error(t, err)

	var account AccountHash
	require.NoError(t, account.UnmarshalText([]byte(AccountHash(h).String())))
	assert.Equal(t, AccountHash(h), account)
}

func TestContractPackageVersions(t *testing.T) {
	var pkg ContractPackage
	_, ok := pkg.Latest(1)
	assert.False(t, ok)

	assert.Equal(t, uint32(1), pkg.Insert(1, ContractHash{1}))
	assert.Equal(t, uint32(2), pkg.Insert(1, ContractHash{2}))
	assert.Equal(t, uint32(1), pkg.Insert(2, ContractHash{3}))

	latest, ok := pkg.Latest(1)
	require.True(t, ok)
	assert.Equal(t, ContractHash{2}, latest.Contract)

	v, ok := pkg.Lookup(1, 1)
	require.True(t, ok)
	assert.Equal(t, ContractHash{1}, v.Contract)
	_, ok = pkg.Lookup(2, 2)
	assert.False(t, ok)

	clone := pkg.Clone()
	clone.Insert(1, ContractHash{4})
	assert.Len(t, pkg.Versions, 3)
}

func TestEntryPoints(t *testing.T) {
	var eps EntryPoints
	eps.Add(NewEntryPoint("get", nil, CLTypeI64, AccessPublic, EntryPointContract))
	eps.Add(NewEntryPoint("inc", nil, CLTypeUnit, AccessPublic, EntryPointContract))
	eps.Add(NewEntryPoint("get", nil, CLTypeI32, AccessPublic, EntryPointContract))
	require.NoError(t, eps.Validate())
	assert.Equal(t, []string{"get", "inc"}, eps.Names())

	ep, ok := eps.Get("get")
	require.True(t, ok)
	assert.Equal(t, CLTypeI32, ep.Ret)

	dup := append(EntryPoints{}, eps...)
	dup = append(dup, eps[0])
	assert.ErrorIs(t, dup.Validate(), ErrDuplicateKey)

	unnamed := EntryPoints{{Ret: CLTypeUnit}}
	assert.ErrorIs(t, unnamed.Validate(), ErrInvalidArgument)

	var args RuntimeArgs
	args.Insert("a", I32(1))
	args.Insert("a", I32(2))
	require.Len(t, args, 1)
	v, ok := args.Get("a")
	require.True(t, ok)
	assert.Equal(t, I32(2), v)
}
