package admin

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	admindb "github.com/planmoni/backoffice/internal/admin/db"
	"github.com/planmoni/backoffice/pkg/sqltime"
)

// auditLogResponse は監査ログのJSONレスポンス構造。
type auditLogResponse struct {
	// ID は監査ログの一意識別子。
	ID string `json:"id"`
	// ActorID は操作した管理者のID。
	ActorID string `json:"actor_id"`
	// Action は操作の種類。
	Action string `json:"action"`
	// EntityType は対象エンティティの種類。
	EntityType string `json:"entity_type"`
	// EntityID は対象エンティティのID。
	EntityID string `json:"entity_id"`
	// Data は操作の詳細。
	Data json.RawMessage `json:"data"`
	// CreatedAt は記録日時。
	CreatedAt string `json:"created_at"`
}

func toAuditLogResponse(l admindb.AuditLog) auditLogResponse {
	data := json.RawMessage(l.Data)
	if !json.Valid(data) {
		data = json.RawMessage("{}")
	}
	return auditLogResponse{
		ID:         l.ID,
		ActorID:    l.ActorID,
		Action:     l.Action,
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		Data:       data,
		CreatedAt:  sqltime.RFC3339(l.CreatedAt),
	}
}

// handleListAuditLogs は監査ログ一覧取得を処理するハンドラを返す。新しい順に返す。
func (s *Server) handleListAuditLogs() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset, ok := parsePage(c)
		if !ok {
			return
		}
		filter := admindb.AuditLogFilter{
			EntityType: c.Query("entity_type"),
			EntityID:   c.Query("entity_id"),
			ActorID:    c.Query("actor_id"),
		}

		ctx := c.Request.Context()
		logs, err := s.queries.ListAuditLogs(ctx, admindb.ListAuditLogsParams{
			AuditLogFilter: filter,
			Limit:          limit,
			Offset:         offset,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "監査ログの取得に失敗しました"})
			s.logger.Error().Err(err).Msg("監査ログ一覧取得エラー")
			return
		}
		total, err := s.queries.CountAuditLogs(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "監査ログ件数の取得に失敗しました"})
			s.logger.Error().Err(err).Msg("監査ログ件数取得エラー")
			return
		}

		items := make([]auditLogResponse, 0, len(logs))
		for _, l := range logs {
			items = append(items, toAuditLogResponse(l))
		}
		c.JSON(http.StatusOK, pageResponse[auditLogResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
	}
}
