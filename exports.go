package rentledger

import "github.com/xraph/rentledger/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	INR        = types.INR
	Zero       = types.Zero
	ParseMoney = types.ParseMoney
)
