package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/nightspire/dungeonpulse/internal/apperrors"
	"github.com/nightspire/dungeonpulse/internal/directory"
	"github.com/nightspire/dungeonpulse/internal/logger"
	"github.com/nightspire/dungeonpulse/internal/world"
)

type contextKey int

const accountContextKey contextKey = iota

// buildRouter 装配全部路由
func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	r.HandleFunc("/overworld", s.handleOverworld).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id:[0-9]+}", s.handleRoomContents).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.Handle("/initialize", s.requireAuth(s.handleInitialize)).Methods(http.MethodPost)
	r.Handle("/move", s.requireAuth(s.handleMove)).Methods(http.MethodPost)
	r.Handle("/playerinfo", s.requireAuth(s.handlePlayerInfo)).Methods(http.MethodGet)

	r.HandleFunc("/ws/rooms/{playerID}", s.handleWebSocket).Methods(http.MethodGet)

	return r
}

// --- 响应辅助 ---

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// writeError 把业务错误映射为 HTTP 响应
func writeError(w http.ResponseWriter, err error) {
	var worldErr *apperrors.WorldError
	if !errors.As(err, &worldErr) {
		logger.Log.Errorf("内部错误: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: apperrors.CodeUnknown, Message: "internal error"})
		return
	}

	status := http.StatusBadRequest
	switch worldErr.Kind {
	case "InvalidCredentials", "InvalidToken":
		status = http.StatusUnauthorized
	case "DuplicateUsername":
		status = http.StatusConflict
	case "InvalidRoom":
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Code: worldErr.Code, Message: worldErr.Message})
}

// --- 认证 ---

// requireAuth 校验 Bearer 令牌并把账户挂到请求上下文
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			writeError(w, apperrors.ErrInvalidToken)
			return
		}

		account, err := s.directory.ResolveToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountContextKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountFrom(r *http.Request) *directory.AccountRecord {
	account, _ := r.Context().Value(accountContextKey).(*directory.AccountRecord)
	return account
}

// --- 账户 ---

type registerRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	PasswordVerify string `json:"password_verify"`
}

type accountResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	PlayerID  string `json:"player_id"`
	Avatar    int    `json:"avatar"`
	RoomID    int    `json:"room_id"`
	CurrentHP int    `json:"current_hp"`
	MaxHP     int    `json:"max_hp"`
	CreatedAt int64  `json:"created_at"`
}

func toAccountResponse(record *directory.AccountRecord) accountResponse {
	return accountResponse{
		ID:        record.ID,
		Username:  record.Username,
		PlayerID:  record.PlayerID,
		Avatar:    record.Avatar,
		RoomID:    record.RoomID,
		CurrentHP: record.CurrentHP,
		MaxHP:     record.MaxHP,
		CreatedAt: record.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrInvalidMsg)
		return
	}
	if req.Username == "" || req.Password != req.PasswordVerify {
		writeError(w, apperrors.ErrInvalidMsg)
		return
	}

	record, err := s.directory.Create(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Log.Infof("✅ 新账户注册: %s", record.Username)
	writeJSON(w, http.StatusCreated, toAccountResponse(record))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrInvalidMsg)
		return
	}

	record, err := s.directory.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := s.directory.IssueToken(r.Context(), record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// --- 世界 ---

type initializeRequest struct {
	Avatar  int  `json:"avatar"`
	Respawn bool `json:"respawn"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	// 请求体可以为空：默认沿用账户形象、不请求重生
	var req initializeRequest
	req.Avatar = account.Avatar
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if req.Avatar != account.Avatar {
		account.Avatar = req.Avatar
		if err := s.directory.Update(r.Context(), account); err != nil {
			logger.Log.Warnf("💾 更新账户形象失败: %v", err)
		}
	}

	info, err := s.world.InitializePlayer(world.PlayerProfile{
		PlayerID:  account.PlayerID,
		Username:  account.Username,
		Avatar:    account.Avatar,
		RoomID:    account.RoomID,
		CurrentHP: account.CurrentHP,
		MaxHP:     account.MaxHP,
		LastSaved: time.Unix(account.UpdatedAt, 0),
	}, req.Respawn)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Log.Infof("🎮 玩家 %s 进入世界，房间 %d", account.Username, info.CurrentRoom)
	writeJSON(w, http.StatusOK, info)
}

type moveRequest struct {
	RoomID int `json:"room_id"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ErrInvalidMsg)
		return
	}

	info, err := s.world.MoveToRoom(account.PlayerID, req.RoomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handlePlayerInfo(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r)

	// 重新读取，拿到异步保存后的最新状态
	record, err := s.directory.Lookup(r.Context(), account.Username)
	if err != nil || record == nil {
		writeError(w, apperrors.ErrInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(record))
}

func (s *Server) handleOverworld(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.world.OverworldSnapshot())
}

type roomContentsResponse struct {
	RoomID  int            `json:"room_id"`
	Doodads []world.Doodad `json:"doodads"`
}

func (s *Server) handleRoomContents(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, apperrors.ErrInvalidRoom)
		return
	}

	doodads, err := s.world.RoomContents(roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomContentsResponse{RoomID: roomID, Doodads: doodads})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
