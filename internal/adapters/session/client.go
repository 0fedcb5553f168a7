package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/mlatflow/internal/adapters/wire"
	"github.com/ghalamif/mlatflow/internal/domain"
)

// Client is the station side of a session.
type Client struct {
	info domain.StationInfo
	conn net.Conn
	r    *bufio.Reader
	wmu  sync.Mutex
}

// Dial connects to a correlation server and completes the handshake. The
// context bounds the dial and the handshake only.
func Dial(ctx context.Context, addr string, info domain.StationInfo) (*Client, error) {
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("station info: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Join(domain.ErrTransport, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c := &Client{info: info, conn: conn, r: bufio.NewReader(conn)}
	if err := c.handshake(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return c, nil
}

func (c *Client) handshake() error {
	greeting, err := c.r.ReadString('\n')
	if err != nil {
		return errors.Join(domain.ErrTransport, err)
	}
	if strings.TrimSpace(greeting) != wire.Greeting {
		return fmt.Errorf("unexpected greeting %q", strings.TrimSpace(greeting))
	}

	hello, err := wire.EncodeHello(c.info)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(hello); err != nil {
		return errors.Join(domain.ErrTransport, err)
	}

	resp, err := c.r.ReadString('\n')
	if err != nil {
		return errors.Join(domain.ErrTransport, err)
	}
	resp = strings.TrimSpace(resp)
	switch {
	case resp == wire.Accepted:
		return nil
	case strings.HasPrefix(resp, wire.Refused):
		return fmt.Errorf("station refused: %s", strings.TrimSpace(strings.TrimPrefix(resp, wire.Refused)))
	default:
		return fmt.Errorf("unexpected handshake response %q", resp)
	}
}

func (c *Client) Station() domain.StationID { return domain.StationID(c.info.Name) }

// SendBatch ships reports as one batch line.
func (c *Client) SendBatch(reports []domain.Report) error {
	line, err := wire.EncodeBatch(reports)
	if err != nil {
		return err
	}
	return c.writeLine(line)
}

func (c *Client) writeLine(line []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(line); err != nil {
		return errors.Join(domain.ErrTransport, err)
	}
	return nil
}

// ReadGroup blocks until the server broadcasts the next group.
func (c *Client) ReadGroup() (wire.GroupMessage, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return wire.GroupMessage{}, errors.Join(domain.ErrTransport, err)
	}
	return wire.DecodeGroup(line)
}

func (c *Client) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

func (c *Client) Close() error { return c.conn.Close() }
