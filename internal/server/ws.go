package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nightspire/dungeonpulse/internal/apperrors"
	"github.com/nightspire/dungeonpulse/internal/logger"
)

// handleWebSocket 把已初始化的玩家绑定到一条实时连接。
// 令牌通过查询参数传递（浏览器 WebSocket 不能带自定义头），
// 令牌对应的玩家必须与路径中的 playerID 一致
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	playerID := mux.Vars(r)["playerID"]

	account, err := s.directory.ResolveToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	if account.PlayerID != playerID {
		logger.Log.Warnf("🚫 令牌与玩家不匹配: token=%s path=%s", account.PlayerID, playerID)
		writeError(w, apperrors.ErrInvalidToken)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("WebSocket 升级失败: %v", err)
		return
	}

	client := newClient(s, conn, playerID, account.Username)

	// 玩家必须先通过 /initialize 进入世界
	if err := s.world.AttachSink(playerID, client); err != nil {
		logger.Log.Warnf("🚫 玩家 %s 未初始化就建立连接", account.Username)
		client.Close()
		conn.Close()
		return
	}

	s.registerClient(client)
	logger.Log.Infof("✅ 玩家 %s 已连接", account.Username)

	go client.readPump()
	go client.writePump()
}
