package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/nightspire/dungeonpulse/internal/apperrors"
)

const (
	// Redis key 前缀
	accountKeyPrefix = "account:"
	playerKeyPrefix  = "player:"
	tokenKeyPrefix   = "token:"
	nextIDKey        = "account:next_id"

	// 登录令牌过期时间
	tokenTTL = 24 * time.Hour

	// 密码最短长度
	minPasswordLength = 4
)

const defaultMaxHP = 100

// AccountRecord 账户记录（用于 Redis 序列化）。PasswordHash 永远不对外输出
type AccountRecord struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	PasswordHash string  `json:"password_hash"`
	PlayerID     string  `json:"player_id"`
	Avatar       int     `json:"avatar"`
	RoomID       int     `json:"room_id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	CurrentHP    int     `json:"current_hp"`
	MaxHP        int     `json:"max_hp"`
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

// Directory 账户目录的 Redis 存储
type Directory struct {
	client *redis.Client
}

// New 创建账户目录
func New(client *redis.Client) *Directory {
	return &Directory{client: client}
}

// --- 账户 ---

// Create 注册新账户：密码 bcrypt 加盐哈希，ID 由计数器分配，
// PlayerID 为随机 uuid，初始未入世界（房间 -1），满血 100/100。
// 用户名冲突返回 ErrDuplicateUsername
func (d *Directory) Create(ctx context.Context, username, password string) (*AccountRecord, error) {
	if len(password) < minPasswordLength {
		return nil, apperrors.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("哈希密码失败: %w", err)
	}

	id, err := d.client.Incr(ctx, nextIDKey).Result()
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	record := &AccountRecord{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		PlayerID:     uuid.NewString(),
		RoomID:       -1,
		CurrentHP:    defaultMaxHP,
		MaxHP:        defaultMaxHP,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	jsonData, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("序列化账户失败: %w", err)
	}

	// SetNX 保证同名注册只有一个赢家
	ok, err := d.client.SetNX(ctx, accountKeyPrefix+username, jsonData, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrDuplicateUsername
	}

	if err := d.client.Set(ctx, playerKeyPrefix+record.PlayerID, username, 0).Err(); err != nil {
		return nil, err
	}
	return record, nil
}

// Authenticate 校验用户名密码。账户不存在与密码错误返回同一个错误，
// 不给调用方区分的机会
func (d *Directory) Authenticate(ctx context.Context, username, password string) (*AccountRecord, error) {
	record, err := d.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	return record, nil
}

// Lookup 按用户名读取账户（不存在返回 nil）
func (d *Directory) Lookup(ctx context.Context, username string) (*AccountRecord, error) {
	data, err := d.client.Get(ctx, accountKeyPrefix+username).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 账户不存在
		}
		return nil, err
	}

	var record AccountRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("反序列化账户失败: %w", err)
	}
	return &record, nil
}

// LookupByPlayerID 按 PlayerID 读取账户（不存在返回 nil）
func (d *Directory) LookupByPlayerID(ctx context.Context, playerID string) (*AccountRecord, error) {
	username, err := d.client.Get(ctx, playerKeyPrefix+playerID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return d.Lookup(ctx, username)
}

// Update 整体覆写账户记录并刷新 UpdatedAt
func (d *Directory) Update(ctx context.Context, record *AccountRecord) error {
	if record == nil {
		return nil
	}
	record.UpdatedAt = time.Now().Unix()

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化账户失败: %w", err)
	}
	return d.client.Set(ctx, accountKeyPrefix+record.Username, jsonData, 0).Err()
}

// UpdatePlayerState 回写一名玩家的世界状态（房间、位置、血量）。
// 这是世界管理器的保存边界，PlayerID 未知时静默成功：
// 账户删除与在途保存之间的竞态不算错误
func (d *Directory) UpdatePlayerState(ctx context.Context, playerID string, roomID int, x, y float64, currentHP, maxHP int) error {
	record, err := d.LookupByPlayerID(ctx, playerID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	record.RoomID = roomID
	record.X = x
	record.Y = y
	record.CurrentHP = currentHP
	record.MaxHP = maxHP
	return d.Update(ctx, record)
}

// --- 令牌 ---

// IssueToken 给账户签发带过期时间的不透明令牌
func (d *Directory) IssueToken(ctx context.Context, record *AccountRecord) (string, error) {
	token := uuid.NewString()
	if err := d.client.Set(ctx, tokenKeyPrefix+token, record.Username, tokenTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// ResolveToken 按令牌读取账户。令牌不存在、已过期或指向已删除的
// 账户都返回 ErrInvalidToken
func (d *Directory) ResolveToken(ctx context.Context, token string) (*AccountRecord, error) {
	username, err := d.client.Get(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, err
	}

	record, err := d.Lookup(ctx, username)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperrors.ErrInvalidToken
	}
	return record, nil
}

// RevokeToken 主动吊销令牌
func (d *Directory) RevokeToken(ctx context.Context, token string) error {
	return d.client.Del(ctx, tokenKeyPrefix+token).Err()
}
