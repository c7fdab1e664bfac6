package models

// Brand 品牌注册表，发起验证前校验品牌代码
type Brand struct {
	BaseModel
	Code   string `json:"code" gorm:"unique;not null;size:50"` // 大写品牌代码
	Name   string `json:"name" gorm:"not null;size:100"`
	Active bool   `json:"active" gorm:"default:true"`

	// TokenExpiryHours 品牌级访问令牌有效期覆盖，0表示使用全局默认值
	TokenExpiryHours int `json:"token_expiry_hours" gorm:"default:0"`
}

// TableName 指定表名
func (Brand) TableName() string {
	return "brands"
}
