package services

import (
	"testing"
	"time"

	"invitegate/internal/models"

	"github.com/stretchr/testify/require"
)

func TestSweepFlipsStaleRows(t *testing.T) {
	db := newTestDB(t)
	sweeper := NewExpirySweeper(db)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	rows := []models.InviteRecord{
		{Ref: "s1", Brand: "ROYAL", EmailHash: "h", Position: "p", OtpStatus: models.OtpStatusPending, OtpExpiry: &past},
		{Ref: "s2", Brand: "ROYAL", EmailHash: "h", Position: "p", OtpStatus: models.OtpStatusPending, OtpExpiry: &future},
		{Ref: "s3", Brand: "ROYAL", EmailHash: "h", Position: "p", OtpStatus: models.OtpStatusVerified, TokenStatus: models.TokenStatusIssued, TokenExpiry: &past},
		{Ref: "s4", Brand: "ROYAL", EmailHash: "h", Position: "p", OtpStatus: models.OtpStatusVerified, TokenStatus: models.TokenStatusConfirmed, TokenExpiry: &future},
		{Ref: "s5", Brand: "ROYAL", EmailHash: "h", Position: "p", OtpStatus: models.OtpStatusVerified, TokenStatus: models.TokenStatusUsed, TokenExpiry: &past},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	require.NoError(t, sweeper.Sweep())

	expect := map[string][2]string{
		"s1": {models.OtpStatusExpired, ""},
		"s2": {models.OtpStatusPending, ""},
		"s3": {models.OtpStatusVerified, models.TokenStatusExpired},
		"s4": {models.OtpStatusVerified, models.TokenStatusConfirmed},
		// USED是吸收态，清扫不触碰
		"s5": {models.OtpStatusVerified, models.TokenStatusUsed},
	}
	for ref, want := range expect {
		var row models.InviteRecord
		require.NoError(t, db.Where("ref = ?", ref).First(&row).Error)
		require.Equal(t, want[0], row.OtpStatus, "ref=%s", ref)
		require.Equal(t, want[1], row.TokenStatus, "ref=%s", ref)
	}

	// 终态写入幂等，再扫一遍无害
	require.NoError(t, sweeper.Sweep())
}
