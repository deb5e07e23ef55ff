package control

import (
	"fmt"
	"io"

	"intercom/pkg/call"
	"intercom/pkg/packet"

	"github.com/womat/debug"
)

// StateReader returns the current call state.
type StateReader interface {
	State() call.State
}

// Capture reads chunks of pcm from src and sends them as voice data while the call is in progress.
//  It runs in its own go function with its own Sender (see transport.Sender.Duplicate).
//  Capture returns when src fails or ends, the caller is expected to terminate the process.
func Capture(src io.Reader, c StateReader, tx Sender, chunk int) error {
	buf := make([]byte, chunk)

	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 && c.State() == call.InProgressCall {
			if e := tx.SendData(packet.VoiceData, buf[:n]); e != nil {
				debug.ErrorLog.Printf("send voice data: %v", e)
			}
		}

		if err != nil {
			return fmt.Errorf("audio capture: %w", err)
		}
	}
}
