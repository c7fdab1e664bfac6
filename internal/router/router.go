package router

import (
	"invitegate/internal/database"
	"invitegate/internal/handlers"
	"invitegate/internal/middleware"
	"invitegate/internal/services"
	"invitegate/pkg/config"
	"invitegate/pkg/jwt"
	"invitegate/pkg/response"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter() *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册路由
	registerRoutes(router)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine) {
	cfg := config.GetConfig()
	db := database.GetDB()

	// 组装验证流程的依赖链
	signatureService := services.NewSignatureService(db, cfg.Signature.LinkMaxAge, cfg.Signature.ClockSkew)
	guard := services.NewInviteGuard(db)
	otpService := services.NewOtpService(db, guard, cfg.OTP)
	tokenService := services.NewTokenService(db, database.GetLocker(), cfg.Token, cfg.Lock.Wait)
	notifier := services.NewNotifier(cfg.SMTP)
	verificationService := services.NewVerificationService(db, signatureService, otpService, tokenService, notifier, cfg.App)
	adminService := services.NewAdminService(db, jwt.GetJWTManager(), guard, tokenService, verificationService)

	auth := middleware.NewAuthMiddleware()

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 候选人验证流程（无需登录，签名链接/验证码/令牌即持有因子）
		verificationHandler := handlers.NewVerificationHandler(verificationService)
		invite := api.Group("/invite")
		{
			invite.GET("/request", verificationHandler.RequestOtp)  // 打开签名链接，签发验证码
			invite.POST("/verify", verificationHandler.VerifyOtp)   // 提交验证码，签发访问令牌
			invite.GET("/access", verificationHandler.AccessPage)   // 确认页只读校验（预取安全）
			invite.POST("/confirm", verificationHandler.Confirm)    // 消费令牌，单次揭示预约地址
		}

		// 管理端认证
		adminHandler := handlers.NewAdminHandler(adminService)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", adminHandler.Login) // 管理员登录
		}

		// 🔒 管理端接口（需要管理员JWT）
		admin := api.Group("/admin", auth.RequireAdmin())
		{
			admin.POST("/dispatches", adminHandler.Dispatch)        // 派发邀请，生成签名链接
			admin.GET("/invites", adminHandler.ListInvites)         // 邀请记录列表
			admin.POST("/invites/revoke", adminHandler.Revoke)      // 撤销未消费的令牌
			admin.POST("/invites/unlock", adminHandler.Unlock)      // 解锁身份键（审计）
		}
	}
}

// 健康检查
func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "invitegate",
		"version":   "1.0.0",
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
