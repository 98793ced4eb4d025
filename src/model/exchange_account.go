package model

import "time"

// ExchangeAccount links a bot to a set of exchange credentials. The key and
// secret are stored encrypted (see src/security) and never serialized.
type ExchangeAccount struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100" json:"name"`

	// Exchange identifier, e.g. "binance".
	Exchange string `gorm:"size:50;not null" json:"exchange"`

	APIKeyEncrypted    string `gorm:"column:api_key;type:text" json:"-"`
	APISecretEncrypted string `gorm:"column:api_secret;type:text" json:"-"`

	Active  bool `gorm:"default:true" json:"active"`
	Testnet bool `gorm:"default:false" json:"testnet"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExchangeAccount) TableName() string {
	return "exchange_accounts"
}
