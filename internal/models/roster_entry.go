package models

// RosterEntry 候选人名录，由管理端派发，是发起验证前的存在性校验来源
// 预约地址保存在名录中，签发时复制到邀请记录，避免验证流程反查名录
type RosterEntry struct {
	BaseModel
	Brand      string `json:"brand" gorm:"not null;size:50;index:idx_roster,priority:1"`
	Email      string `json:"email" gorm:"not null;size:200"`
	EmailHash  string `json:"email_hash" gorm:"not null;size:64;index:idx_roster,priority:2"`
	Position   string `json:"position" gorm:"not null;size:200;index:idx_roster,priority:3"`
	BookingURL string `json:"-" gorm:"not null;size:500"`
	Active     bool   `json:"active" gorm:"default:true"`
}

// TableName 指定表名
func (RosterEntry) TableName() string {
	return "roster_entries"
}
