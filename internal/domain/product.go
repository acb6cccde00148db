package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray stores a string slice as JSON text in the database.
type StringArray []string

// Value implements driver.Valuer.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Product is one catalog entry. Rows are written by the ingest pipeline and
// read by the product lookup endpoint; the vector index carries a mirror of
// DisplayName and ImageURL in its payload.
type Product struct {
	ID             string      `gorm:"type:text;primaryKey" json:"id"`
	DisplayName    string      `gorm:"type:text;not null" json:"productDisplayName"`
	ImageURL       string      `gorm:"type:text" json:"image_url"`
	Category       string      `gorm:"type:text;index:idx_products_category" json:"category,omitempty"`
	SubCategory    string      `gorm:"type:text" json:"sub_category,omitempty"`
	Gender         string      `gorm:"type:text" json:"gender,omitempty"`
	BaseColour     string      `gorm:"type:text" json:"base_colour,omitempty"`
	Tags           StringArray `gorm:"type:text" json:"tags,omitempty"`
	PointID        string      `gorm:"type:text;index:idx_products_point" json:"-"`
	EmbeddingModel string      `gorm:"type:text" json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string {
	return "products"
}
