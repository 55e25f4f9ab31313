package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer はJWTの発行者。
	Issuer = "planmoni-gateway"
	// TokenTTL はJWTの有効期間。
	TokenTTL = 24 * time.Hour
)

// コンテキストキー。
const (
	contextKeyUserID = "user_id"
	contextKeyEmail  = "email"
	contextKeyClaims = "claims"
)

// headerKeyUserID はサービス間でユーザーIDを伝播するためのHTTPヘッダーキー。
const headerKeyUserID = "X-User-ID"

// Identity は認証済み管理者の情報。JWT発行時に使用する。
type Identity struct {
	// UserID は管理者の一意識別子。
	UserID string
	// Email は管理者のメールアドレス。
	Email string
	// Role はロール名。
	Role string
	// Permissions はロールに付与された権限コードの一覧。
	Permissions []string
}

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// 管理者のIDとロール、権限をサービス間で伝播するために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済み管理者の一意識別子。
	UserID string `json:"user_id"`
	// Email は管理者のメールアドレス。
	Email string `json:"email"`
	// Role はロール名。
	Role string `json:"role"`
	// Permissions は権限コードの一覧。
	Permissions []string `json:"permissions"`
}

// RoleService はサービス間通信用トークンのロール。
const RoleService = "service"

// ServiceIdentity はサービス間通信に使用する識別情報を返す。
// 権限を持たないため、JWT認証のみを要求する内部APIにだけ使用できる。
func ServiceIdentity(service string) Identity {
	return Identity{UserID: "service:" + service, Role: RoleService}
}

// GenerateJWT は管理者情報からJWTトークンを生成する。
// gatewayサービスがログイン成功後に呼び出す。
func GenerateJWT(secret string, id Identity) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
		UserID:      id.UserID,
		Email:       id.Email,
		Role:        id.Role,
		Permissions: id.Permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークン文字列を検証し、クレームを返す。
// HS256以外の署名方式や発行者の異なるトークンは拒否する。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("トークンが無効です")
	}
	return claims, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id"、"email"、"claims" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyEmail, claims.Email)
		c.Set(contextKeyClaims, claims)
		c.Header(headerKeyUserID, claims.UserID)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get(contextKeyUserID)
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetClaims はGinコンテキストからJWTクレームを取得する。
// 未認証の場合はnilを返す。
func GetClaims(c *gin.Context) *JWTClaims {
	v, _ := c.Get(contextKeyClaims)
	if claims, ok := v.(*JWTClaims); ok {
		return claims
	}
	return nil
}
