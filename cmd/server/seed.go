package main

import (
	"fmt"
	"invitegate/internal/database"
	"invitegate/internal/models"
	"invitegate/pkg/logger"

	"gorm.io/gorm"
)

// seedData 初始化种子数据
func seedData() error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	db := database.GetDB()

	// 1. 初始化品牌注册表
	if err := seedBrands(db); err != nil {
		return fmt.Errorf("初始化品牌注册表失败: %v", err)
	}

	// 2. 创建默认管理员用户
	if err := createDefaultAdmin(db); err != nil {
		return fmt.Errorf("创建默认管理员失败: %v", err)
	}

	appLogger.Info("Seed data initialization completed successfully")
	return nil
}

// seedBrands 初始化品牌注册表
func seedBrands(db *gorm.DB) error {
	brands := []models.Brand{
		{Code: "ROYAL", Name: "Royal Hotels", Active: true},
		{Code: "HARBOR", Name: "Harbor Resorts", Active: true, TokenExpiryHours: 24},
	}

	for _, brand := range brands {
		var count int64
		db.Model(&models.Brand{}).Where("code = ?", brand.Code).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&brand).Error; err != nil {
			return err
		}
		logger.GetLogger().Infof("品牌已创建: %s", brand.Code)
	}
	return nil
}

// createDefaultAdmin 创建默认管理员用户
func createDefaultAdmin(db *gorm.DB) error {
	var count int64
	db.Model(&models.AdminUser{}).Where("username = ?", "admin").Count(&count)
	if count > 0 {
		logger.GetLogger().Info("默认管理员已存在，跳过创建")
		return nil
	}

	admin := models.AdminUser{
		Username: "admin",
		Active:   true,
	}
	if err := admin.SetPassword("Admin@123"); err != nil {
		return err
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	logger.GetLogger().Warn("默认管理员已创建（admin/Admin@123），请立即修改密码")
	return nil
}
