package models

// User and Branch are read-only views of the account directory.
type User struct {
	ID               int64
	Name             string
	UserCode         string
	TelegramUsername string
	Role             Role
	BranchID         *int64
}

type Branch struct {
	ID               int64
	Name             string
	IsActive         bool
	TelegramThreadID *int64
}

const (
	SettingPricePerKg   = "PRICE_PER_KG"
	SettingExchangeRate = "DOLLAR_RATE"
)

type Setting struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}
