package apperrors

// 错误码（传输层与协议层共用）
const (
	CodeUnknown    = 1000
	CodeInvalidMsg = 1001

	CodeInvalidRoom  = 2001
	CodeNotConnected = 2002
	CodeNotInWorld   = 2003

	CodeDuplicateUsername  = 4001
	CodeInvalidCredentials = 4002
	CodeWeakPassword       = 4003
	CodeInvalidToken       = 4004
)

// WorldError 业务错误，Kind 为机器可读的错误类型，供传输层转换为响应
type WorldError struct {
	Kind    string
	Code    int
	Message string
}

func (e *WorldError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrInvalidMsg   = &WorldError{Kind: "InvalidMessage", Code: CodeInvalidMsg, Message: "无效的消息格式"}
	ErrInvalidRoom  = &WorldError{Kind: "InvalidRoom", Code: CodeInvalidRoom, Message: "房间不存在"}
	ErrNotConnected = &WorldError{Kind: "NotConnected", Code: CodeNotConnected, Message: "目标房间与当前房间不连通"}
	ErrNotInWorld   = &WorldError{Kind: "NotInWorld", Code: CodeNotInWorld, Message: "玩家尚未进入世界"}

	ErrDuplicateUsername  = &WorldError{Kind: "DuplicateUsername", Code: CodeDuplicateUsername, Message: "用户名已存在"}
	ErrInvalidCredentials = &WorldError{Kind: "InvalidCredentials", Code: CodeInvalidCredentials, Message: "用户名或密码错误"}
	ErrWeakPassword       = &WorldError{Kind: "WeakPassword", Code: CodeWeakPassword, Message: "密码长度不足"}
	ErrInvalidToken       = &WorldError{Kind: "InvalidToken", Code: CodeInvalidToken, Message: "令牌无效或已过期"}
)
