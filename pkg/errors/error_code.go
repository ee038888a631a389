package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidTradeRecord   ErrorCode = 102
	ErrCodeInvalidPeriod        ErrorCode = 103
	ErrCodeInvalidSignal        ErrorCode = 104

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound  ErrorCode = 200
	ErrCodeQueryFailed   ErrorCode = 201
	ErrCodeDataNotSorted ErrorCode = 203

	// Strategy/Oracle errors (300-399)
	ErrCodeStrategyConfigError ErrorCode = 300
	ErrCodeStrategyEvaluation  ErrorCode = 301

	// Portfolio errors (400-499)
	ErrCodePositionNotFound  ErrorCode = 400
	ErrCodeDuplicatePosition ErrorCode = 401
	ErrCodeNegativeCash      ErrorCode = 402
	ErrCodeInvalidQuantity   ErrorCode = 403
	ErrCodeInvalidPrice      ErrorCode = 404

	// Backtest errors (500-599)
	ErrCodeBacktestConfigError ErrorCode = 500
	ErrCodeNothingToBacktest   ErrorCode = 501
	ErrCodeBacktestCancelled   ErrorCode = 502
	ErrCodeResultsWriteFailed  ErrorCode = 503

	// Market data errors (600-699)
	ErrCodeMarketDataFetchFailed ErrorCode = 600
	ErrCodeMarketDataWriteFailed ErrorCode = 601
	ErrCodeInvalidTimespan       ErrorCode = 602
	ErrCodeInvalidProvider       ErrorCode = 603
)
