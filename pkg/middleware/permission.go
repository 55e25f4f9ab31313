package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// RoleSuperAdmin はすべての権限を持つ組み込みロール。
const RoleSuperAdmin = "super_admin"

// 権限コード。管理サービスのマイグレーションで同じコードがシードされる。
const (
	PermUsersRead         = "users.read"
	PermUsersWrite        = "users.write"
	PermTransactionsRead  = "transactions.read"
	PermPayoutsRead       = "payouts.read"
	PermPayoutsWrite      = "payouts.write"
	PermKYCRead           = "kyc.read"
	PermKYCReview         = "kyc.review"
	PermRolesManage       = "roles.manage"
	PermAdminsManage      = "admins.manage"
	PermBannersManage     = "banners.manage"
	PermAppVersionsManage = "app_versions.manage"
	PermAuditRead         = "audit.read"
	PermDashboardRead     = "dashboard.read"
	PermDevicesManage     = "devices.manage"
	PermNotificationsSend = "notifications.send"
	PermCampaignsRead     = "campaigns.read"
	PermCampaignsManage   = "campaigns.manage"
)

// AllPermissions は権限カタログに含まれるすべての権限コード。
var AllPermissions = []string{
	PermUsersRead,
	PermUsersWrite,
	PermTransactionsRead,
	PermPayoutsRead,
	PermPayoutsWrite,
	PermKYCRead,
	PermKYCReview,
	PermRolesManage,
	PermAdminsManage,
	PermBannersManage,
	PermAppVersionsManage,
	PermAuditRead,
	PermDashboardRead,
	PermDevicesManage,
	PermNotificationsSend,
	PermCampaignsRead,
	PermCampaignsManage,
}

// HasPermission はクレームが指定された権限を持つかを判定する。
// super_adminロールは常にtrueを返す。
func (c *JWTClaims) HasPermission(permission string) bool {
	if c == nil {
		return false
	}
	if c.Role == RoleSuperAdmin {
		return true
	}
	return slices.Contains(c.Permissions, permission)
}

// RequirePermission は指定されたすべての権限を要求するGinミドルウェアを返す。
// JWTAuthミドルウェアの後に適用する必要がある。
func RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証が必要です",
			})
			return
		}

		for _, p := range permissions {
			if !claims.HasPermission(p) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":      "この操作を行う権限がありません",
					"permission": p,
				})
				return
			}
		}
		c.Next()
	}
}
