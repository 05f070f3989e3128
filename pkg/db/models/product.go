package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is owned by exactly one store.
type Product struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	StoreID           uuid.UUID       `gorm:"column:store_id;type:uuid;not null"`
	Name              string          `gorm:"column:name;not null"`
	Slug              string          `gorm:"column:slug;not null"`
	Description       *string         `gorm:"column:description"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	InventoryQuantity int             `gorm:"column:inventory_quantity;not null;default:0"`
	IsActive          bool            `gorm:"column:is_active;not null;default:true"`
	Images            []ProductImage  `gorm:"foreignKey:ProductID"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// FirstImageURL returns the lowest-positioned image, if any.
func (p Product) FirstImageURL() string {
	if len(p.Images) == 0 {
		return ""
	}
	first := p.Images[0]
	for _, img := range p.Images[1:] {
		if img.Position < first.Position {
			first = img
		}
	}
	return first.URL
}

// ProductImage is an ordered image reference for a product.
type ProductImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	URL       string    `gorm:"column:url;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *ProductImage) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
