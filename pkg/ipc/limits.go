package ipc

const (
	maxStreamClients      = 256
	maxEventStreamClients = 128

	maxWSReadBytesStream      = 64 << 10
	maxWSReadBytesEventStream = 4 << 10
)
