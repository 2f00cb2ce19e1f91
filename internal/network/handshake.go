package network

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"inputrelay/internal/osutils"
	"inputrelay/internal/protocol"
)

var (
	replyOnce  sync.Once
	replyBytes []byte
)

// HandshakeReply returns the encoded ConnectionStatus sent in answer to every
// ConnectionReceived. Host info is queried on the first call only; the result
// is shared and must not be modified.
func HandshakeReply(ctx context.Context, logger *zap.Logger) []byte {
	replyOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
		info, err := osutils.HostInfo(ctx)
		if err != nil {
			logger.Warn("Host info incomplete, using runtime defaults", zap.Error(err))
		}
		replyBytes = buildReply(info.String())
		logger.Info("Handshake reply ready", zap.String("host", info.String()))
	})
	return replyBytes
}

func buildReply(hostInfo string) []byte {
	hostInfo = strings.ToValidUTF8(hostInfo, "\uFFFD")
	data, err := protocol.Encode(protocol.NewConnectionReply(hostInfo))
	if err != nil {
		// ConnectionStatus always encodes
		panic(err)
	}
	return append(data, '\n')
}
