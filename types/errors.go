package types

import "fmt"

// ApiError is the code a contract aborts with. The host reports it to the caller
// unchanged.
type ApiError uint32

const (
	ErrNone                         ApiError = 1
	ErrMissingArgument              ApiError = 2
	ErrInvalidArgument              ApiError = 3
	ErrDeserialize                  ApiError = 4
	ErrRead                         ApiError = 5
	ErrValueNotFound                ApiError = 6
	ErrContractNotFound             ApiError = 7
	ErrGetKey                       ApiError = 8
	ErrUnexpectedKeyVariant         ApiError = 9
	ErrUnexpectedContractRefVariant ApiError = 10
	ErrInvalidPurseName             ApiError = 11
	ErrInvalidPurse                 ApiError = 12
	ErrUpgradeContractAtURef        ApiError = 13
	ErrTransfer                     ApiError = 14
	ErrNoAccessRights               ApiError = 15
	ErrCLTypeMismatch               ApiError = 16
	ErrEarlyEndOfStream             ApiError = 17
	ErrFormatting                   ApiError = 18
	ErrLeftOverBytes                ApiError = 19
	ErrOutOfMemory                  ApiError = 20
	ErrMaxKeysLimit                 ApiError = 21
	ErrDuplicateKey                 ApiError = 22
	ErrPermissionDenied             ApiError = 23
	ErrMissingKey                   ApiError = 24
)

const userErrorOffset = 65536

var apiErrorNames = map[ApiError]string{
	ErrNone:                         "None",
	ErrMissingArgument:              "MissingArgument",
	ErrInvalidArgument:              "InvalidArgument",
	ErrDeserialize:                  "Deserialize",
	ErrRead:                         "Read",
	ErrValueNotFound:                "ValueNotFound",
	ErrContractNotFound:             "ContractNotFound",
	ErrGetKey:                       "GetKey",
	ErrUnexpectedKeyVariant:         "UnexpectedKeyVariant",
	ErrUnexpectedContractRefVariant: "UnexpectedContractRefVariant",
	ErrInvalidPurseName:             "InvalidPurseName",
	ErrInvalidPurse:                 "InvalidPurse",
	ErrUpgradeContractAtURef:        "UpgradeContractAtURef",
	ErrTransfer:                     "Transfer",
	ErrNoAccessRights:               "NoAccessRights",
	ErrCLTypeMismatch:               "CLTypeMismatch",
	ErrEarlyEndOfStream:             "EarlyEndOfStream",
	ErrFormatting:                   "Formatting",
	ErrLeftOverBytes:                "LeftOverBytes",
	ErrOutOfMemory:                  "OutOfMemory",
	ErrMaxKeysLimit:                 "MaxKeysLimit",
	ErrDuplicateKey:                 "DuplicateKey",
	ErrPermissionDenied:             "PermissionDenied",
	ErrMissingKey:                   "MissingKey",
}

// UserError returns the ApiError for a contract-defined error code.
func UserError(code uint16) ApiError {
	return ApiError(userErrorOffset + uint32(code))
}

// Code is the numeric value reported to the host.
func (e ApiError) Code() uint32 {
	return uint32(e)
}

// IsUser reports whether the error was defined by a contract.
func (e ApiError) IsUser() bool {
	return uint32(e) >= userErrorOffset
}

func (e ApiError) Error() string {
	if e.IsUser() {
		return fmt.Sprintf("api error: User(%d) [%d]", uint32(e)-userErrorOffset, uint32(e))
	}
	if name, ok := apiErrorNames[e]; ok {
		return fmt.Sprintf("api error: %s [%d]", name, uint32(e))
	}
	return fmt.Sprintf("api error: unknown [%d]", uint32(e))
}
