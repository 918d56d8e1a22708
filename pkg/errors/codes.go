package errors

// ErrorCode is a string identifier for a specific failure category.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeOK                 ErrorCode = "OK"
	ErrCodeUnknown            ErrorCode = "COMMON_000"
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeInvalidParam       ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeExternalService    ErrorCode = "COMMON_010"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_011"
)

// Resolution engine error codes.
const (
	// ErrCodeIndexEmpty signals that the canonical entity index was constructed
	// from an empty entity set.  Fatal: nothing can be resolved without an index.
	ErrCodeIndexEmpty ErrorCode = "RES_001"

	// ErrCodeIndexDuplicateID signals two canonical entities sharing one identifier.
	ErrCodeIndexDuplicateID ErrorCode = "RES_002"

	// ErrCodeUnknownEntityKind signals a mention or entity with an unsupported kind.
	ErrCodeUnknownEntityKind ErrorCode = "RES_003"

	// ErrCodeThresholdInvalid signals a partial-match acceptance threshold
	// outside [0, 1].
	ErrCodeThresholdInvalid ErrorCode = "RES_004"
)

// Aggregation error codes.
const (
	ErrCodeAggregationFailed ErrorCode = "AGG_001"
	ErrCodeRowWriteFailed    ErrorCode = "AGG_002"
)

// External data source error codes (AACT registry, ChEMBL, NCBI).
const (
	ErrCodeSourceUnavailable ErrorCode = "SRC_001"
	ErrCodeSourceRateLimited ErrorCode = "SRC_002"
	ErrCodeSourceAuthFailed  ErrorCode = "SRC_003"
	ErrCodeSourceParseError  ErrorCode = "SRC_004"
	ErrCodeSourceNotFound    ErrorCode = "SRC_005"
)

// Mention normalizer (LLM) error codes.
const (
	ErrCodeNormalizerUnavailable ErrorCode = "LLM_001"
	ErrCodeNormalizerBadResponse ErrorCode = "LLM_002"
)

// Short aliases used at call sites throughout the codebase.
const (
	CodeOK             = ErrCodeOK
	CodeUnknown        = ErrCodeUnknown
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeInvalidParam
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeTimeout        = ErrCodeTimeout
	CodeDatabaseError  = ErrCodeDatabaseError
	CodeCacheError     = ErrCodeCacheError
	CodeExternalError  = ErrCodeExternalService
	CodeSourceNotFound = ErrCodeSourceNotFound
)
