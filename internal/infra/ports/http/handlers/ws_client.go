package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/qrave1/SyncRoom/internal/application/config"
	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/domain"
)

// wsClient - исходящая сторона websocket соединения.
// Send только кладет сообщение в буфер, в сокет пишет writeLoop
type wsClient struct {
	id  uuid.UUID
	ws  *websocket.Conn
	cfg config.WebSocketConfig

	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newWSClient(ws *websocket.Conn, cfg config.WebSocketConfig) *wsClient {
	c := &wsClient{
		id:   uuid.New(),
		ws:   ws,
		cfg:  cfg,
		out:  make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}

	go c.writeLoop()

	return c
}

func (c *wsClient) ID() uuid.UUID {
	return c.id
}

// Send не блокируется: переполненный буфер значит, что клиент не успевает читать
func (c *wsClient) Send(data []byte) error {
	select {
	case <-c.done:
		return domain.ErrSendFailed
	default:
	}

	select {
	case c.out <- data:
		return nil
	default:
		return domain.ErrSendFailed
	}
}

func (c *wsClient) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)

	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.out:
			if err := c.write(websocket.TextMessage, data); err != nil {
				slog.Debug("websocket write failed", slog.Any(constant.ConnID, c.id), slog.Any(constant.Error, err))
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				slog.Debug("ping failed", slog.Any(constant.ConnID, c.id), slog.Any(constant.Error, err))
				c.Close()
				return
			}

		case <-c.done:
			c.flush()

			_ = c.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait),
			)

			return
		}
	}
}

// flush дописывает то, что уже лежит в буфере, например error перед закрытием комнаты
func (c *wsClient) flush() {
	for {
		select {
		case data := <-c.out:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsClient) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return err
	}

	return c.ws.WriteMessage(messageType, data)
}
