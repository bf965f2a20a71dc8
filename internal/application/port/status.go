package port

// Status 连接状态，仅用于展示
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusCloudActive  Status = "cloud_active"
	StatusSilent       Status = "silent"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

// Live 连接是否处于可接收行情的状态
func (s Status) Live() bool {
	return s == StatusConnected || s == StatusCloudActive
}

type StatusHandler func(status Status)
