package services

// Notifier 消息投递网关。游戏逻辑只依赖该接口，
// 具体实现可以是WebSocket，也可以是测试用的内存实现。
type Notifier interface {
	// BroadcastToSession 向会话内所有玩家广播消息
	BroadcastToSession(sessionID string, message interface{})
	// SendToPlayer 向指定玩家私发消息
	SendToPlayer(playerID string, message interface{}) error
}

// nopNotifier 空实现，机器人玩家和断线玩家的私发消息落到这里
type nopNotifier struct{}

func (nopNotifier) BroadcastToSession(string, interface{}) {}
func (nopNotifier) SendToPlayer(string, interface{}) error { return nil }

// NopNotifier 返回不做任何投递的网关实现
func NopNotifier() Notifier { return nopNotifier{} }
