package types

// HostModule is the import module name contracts use for host functions.
const HostModule = "env"

// Host function names of the contract ABI. The WASM assembler and the host side
// must agree on these, so both import them from here.
//
// Functions returning a status return 0 on success or an ApiError code.
// HostReadValue returns the number of bytes written, or the negated ApiError code.
const (
	// HostGetKey(name_ptr, name_len, out_ptr) -> status; writes KeySize bytes.
	HostGetKey = "get_key"
	// HostNewURef(value_ptr, value_len, out_ptr) -> status; writes URefSize bytes.
	HostNewURef = "new_uref"
	// HostReadValue(key_ptr, out_ptr, out_cap) -> length or -code.
	HostReadValue = "read_value"
	// HostWrite(key_ptr, value_ptr, value_len) -> status.
	HostWrite = "write"
	// HostAdd(key_ptr, value_ptr, value_len) -> status.
	HostAdd = "add"
	// HostPutKey(name_ptr, name_len, key_ptr) -> status.
	HostPutKey = "put_key"
	// HostNewContract(entry_points_ptr, entry_points_len, named_keys_ptr,
	// named_keys_len, package_name_ptr, package_name_len, access_name_ptr,
	// access_name_len, hash_out, version_out) -> status.
	HostNewContract = "new_contract"
	// HostRet(value_ptr, value_len) terminates the call with a return value.
	HostRet = "ret"
	// HostRevert(code) aborts the call.
	HostRevert = "revert"
)

// Well-known export names.
const (
	// InstallEntryPoint is run when module bytes are executed as session code.
	InstallEntryPoint = "call"
	// MemoryExport is the memory a WASM module must export.
	MemoryExport = "memory"
)
