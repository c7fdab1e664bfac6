package handlers

import (
	"invitegate/internal/services"
	"invitegate/pkg/pagination"
	"invitegate/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理端处理器
type AdminHandler struct {
	adminService *services.AdminService
}

// NewAdminHandler 创建管理端处理器
func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 管理员登录
// @Summary 管理员登录
// @Tags 管理端
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Success 200 {object} response.Response
// @Router /api/v1/auth/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	token, err := h.adminService.Login(req.Username, req.Password)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{"token": token})
}

// DispatchRequest 派发请求
type DispatchRequest struct {
	Brand      string `json:"brand" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Position   string `json:"position" binding:"required"`
	BookingURL string `json:"booking_url" binding:"required,url"`
}

// Dispatch 派发邀请：登记候选人名录并返回签名的发起链接
// @Summary 派发邀请
// @Tags 管理端
// @Accept json
// @Produce json
// @Param request body DispatchRequest true "派发信息"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/dispatches [post]
func (h *AdminHandler) Dispatch(c *gin.Context) {
	var req DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	link, err := h.adminService.Dispatch(h.operator(c), req.Brand, req.Email, req.Position, req.BookingURL)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{"request_link": link})
}

// ListInvites 分页查询邀请记录
// @Summary 邀请记录列表
// @Tags 管理端
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页大小"
// @Param brand query string false "品牌过滤"
// @Param token_status query string false "令牌状态过滤"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/invites [get]
func (h *AdminHandler) ListInvites(c *gin.Context) {
	params := pagination.ParsePageParams(c)

	records, pageInfo, err := h.adminService.ListInvites(params, c.Query("brand"), c.Query("token_status"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.SuccessWithPage(c, records, pageInfo)
}

// IdentityKeyRequest 身份键请求（撤销/解锁共用）
type IdentityKeyRequest struct {
	Brand    string `json:"brand" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Position string `json:"position" binding:"required"`
}

// Revoke 撤销身份键下所有未消费的令牌
// @Summary 撤销邀请令牌
// @Tags 管理端
// @Accept json
// @Produce json
// @Param request body IdentityKeyRequest true "身份键"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/invites/revoke [post]
func (h *AdminHandler) Revoke(c *gin.Context) {
	var req IdentityKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	count, err := h.adminService.Revoke(h.operator(c), req.Brand, req.Email, req.Position)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{"revoked": count})
}

// Unlock 解锁身份键（默认流程之外的覆盖通道，落审计日志）
// @Summary 解锁邀请
// @Tags 管理端
// @Accept json
// @Produce json
// @Param request body IdentityKeyRequest true "身份键"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/invites/unlock [post]
func (h *AdminHandler) Unlock(c *gin.Context) {
	var req IdentityKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误")
		return
	}

	count, err := h.adminService.Unlock(h.operator(c), req.Brand, req.Email, req.Position)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{"unlocked": count})
}

// operator 从认证中间件取当前管理员用户名
func (h *AdminHandler) operator(c *gin.Context) string {
	if username, ok := c.Get("username"); ok {
		return username.(string)
	}
	return "unknown"
}
