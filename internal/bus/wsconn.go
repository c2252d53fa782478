package bus

import (
	"bytes"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn exposes a websocket as the byte stream the STOMP codec expects.
// Outbound bytes are buffered until a frame terminator so that every STOMP
// frame (or heart-beat EOL) travels as exactly one text message.
type wsConn struct {
	ws *websocket.Conn

	rmu    sync.Mutex
	reader io.Reader

	wmu  sync.Mutex
	wbuf []byte
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	for {
		if c.reader == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.wbuf = append(c.wbuf, p...)
	for len(c.wbuf) > 0 {
		var end int
		switch {
		case c.wbuf[0] == '\n':
			end = 1
		case bytes.HasPrefix(c.wbuf, []byte("\r\n")):
			end = 2
		default:
			i := bytes.IndexByte(c.wbuf, 0)
			if i < 0 {
				return len(p), nil
			}
			end = i + 1
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, c.wbuf[:end]); err != nil {
			return 0, err
		}
		c.wbuf = c.wbuf[end:]
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadlineSoon())
	return c.ws.Close()
}
