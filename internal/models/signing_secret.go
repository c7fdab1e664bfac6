package models

// SigningSecret 链接签名密钥，首次使用时自动生成并持久化
// 轮换密钥会使所有未消费的签名链接失效，属可接受的运维代价
type SigningSecret struct {
	BaseModel
	Name   string `json:"name" gorm:"unique;not null;size:50"`
	Secret string `json:"-" gorm:"not null;size:128"` // 32字节随机密钥的hex编码
}

// TableName 指定表名
func (SigningSecret) TableName() string {
	return "signing_secrets"
}

// SigningSecretDefault 默认密钥名
const SigningSecretDefault = "link-signing"
