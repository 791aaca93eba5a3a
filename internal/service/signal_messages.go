package service

import "encoding/json"

// 信令通道消息类型。客户端上行与服务端下行共用同一个 JSON 帧格式：
// {"type": "...", "data": {...}}
const (
	MsgAuthenticate      = "authenticate"
	MsgOnlineUsersUpdate = "online_users_update"
	MsgCallRequest       = "call_request"
	MsgCallAccept        = "call_accept"
	MsgCallDecline       = "call_decline"
	MsgCallAccepted      = "call_accepted"
	MsgCallDeclined      = "call_declined"
	MsgEndCall           = "end_call"
	MsgCallEnded         = "call_ended"
	MsgCallTimeout       = "call_timeout"
)

// Envelope 上行消息帧，Data 延迟到各分支再按类型解析
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WSMessage 下行消息帧
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AuthenticatePayload struct {
	UserID uint `json:"userId"`
}

type OnlineUsersPayload struct {
	OnlineUsers []uint `json:"onlineUsers"`
}

type CallRequestPayload struct {
	CalleeID   uint   `json:"calleeId"`
	ExerciseID uint   `json:"exerciseId"`
	Duration   int    `json:"duration"`
	CallerName string `json:"callerName"`
}

type CallAcceptPayload struct {
	RequestID string `json:"requestId"`
}

type CallDeclinePayload struct {
	RequestID string `json:"requestId"`
}

type EndCallPayload struct {
	SessionID string `json:"sessionId"`
}

// CallRequestNotice 被叫方收到的呼叫邀请
type CallRequestNotice struct {
	RequestID     string   `json:"requestId"`
	CallerID      uint     `json:"callerId"`
	CallerName    string   `json:"callerName"`
	CallerAvatar  string   `json:"callerAvatar"`
	ExerciseID    uint     `json:"exerciseId"`
	ExerciseTitle string   `json:"exerciseTitle"`
	Duration      int      `json:"duration"`
	Topics        []string `json:"topics"`
}

type CallAcceptedPayload struct {
	SessionID     string   `json:"sessionId"`
	PartnerID     uint     `json:"partnerId"`
	PartnerName   string   `json:"partnerName"`
	PartnerAvatar string   `json:"partnerAvatar"`
	ExerciseTitle string   `json:"exerciseTitle"`
	Duration      int      `json:"duration"`
	Topics        []string `json:"topics"`
}

type CallDeclinedPayload struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"` // declined | offline | busy
}

type CallEndedPayload struct {
	SessionID         string `json:"sessionId"`
	ShouldEvaluate    bool   `json:"shouldEvaluate"`
	EvaluatedUserID   uint   `json:"evaluatedUserId"`
	EvaluatedUserName string `json:"evaluatedUserName"`
}

type CallTimeoutPayload struct {
	RequestID string `json:"requestId"`
}
