package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AnyOrigin は任意のオリジンを許可する指定。開発モードでのみ使用する。
const AnyOrigin = "*"

// ダッシュボードに許可するメソッドとヘッダー。
const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type"
	corsMaxAge       = "86400"
)

// NormalizeOrigin は設定されたオリジンを比較用の形式にする。
// 前後の空白と末尾のスラッシュを取り除く。
func NormalizeOrigin(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}

// originSet は許可するオリジンの集合。
type originSet struct {
	any   bool
	exact map[string]struct{}
}

func newOriginSet(origins []string) originSet {
	set := originSet{exact: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		switch o = NormalizeOrigin(o); o {
		case "":
		case AnyOrigin:
			set.any = true
		default:
			set.exact[o] = struct{}{}
		}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if s.any {
		return true
	}
	_, ok := s.exact[origin]
	return ok
}

// CORS は管理ダッシュボードのオリジンからのAPIアクセスを許可するミドルウェアを返す。
// 認証情報付きのリクエストを受けるため、"*" を指定した場合もリクエストのオリジンをそのまま返す。
// OPTIONSリクエストはオリジンに関係なく204で終了する。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := newOriginSet(allowedOrigins)

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origins.allows(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Max-Age", corsMaxAge)
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
